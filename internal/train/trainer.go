// Package train runs the epoch loop of an experiment: it decides between a
// fresh start and a resume, trains with Adam, logs progress and writes a
// checkpoint after every completed epoch.
package train

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/mrcqa/internal/autodiff"
	"github.com/born-ml/mrcqa/internal/bidaf"
	"github.com/born-ml/mrcqa/internal/checkpoint"
	"github.com/born-ml/mrcqa/internal/config"
	"github.com/born-ml/mrcqa/internal/dataset"
	"github.com/born-ml/mrcqa/internal/embedding"
	"github.com/born-ml/mrcqa/internal/nn"
	"github.com/born-ml/mrcqa/internal/optim"
	"github.com/born-ml/mrcqa/internal/tensor"
	"github.com/born-ml/mrcqa/internal/tokenizer"
	"github.com/born-ml/mrcqa/internal/vocab"
)

// Errors returned by Run.
var (
	// ErrNumerical is returned when a batch loss or gradient is NaN or infinite.
	ErrNumerical = errors.New("train: non-finite loss or gradient")
	// ErrOptimizerState is returned when a stored optimizer history is unusable.
	ErrOptimizerState = errors.New("train: unusable optimizer state")
	// ErrNoExamples is returned when the data yields no trainable example.
	ErrNoExamples = errors.New("train: no usable examples")
)

// Options are the command-line inputs of a run.
type Options struct {
	ExpDir       string
	DataPath     string
	ForceRestart bool

	// WordRep is an optional pre-trained embedding file.
	WordRep string
	// UseCovariance draws out-of-vocabulary vectors from the full covariance.
	UseCovariance bool
}

// Trainer drives one training run.
type Trainer struct {
	cfg     config.Config
	opts    Options
	log     *Logger
	store   *checkpoint.Store
	backend *autodiff.AutodiffBackend
	tok     tokenizer.Tokenizer

	state   State
	history []State
	record  *checkpoint.Record

	words *vocab.Vocabulary
	chars *vocab.Vocabulary
	model *bidaf.Model
	adam  *optim.Adam

	examples []dataset.Example
	gen      *dataset.EpochGen
	forcing  *rand.Rand

	epoch int
	step  int64
	loss  float64
}

// New creates a trainer. backend runs the kernels; it is wrapped for autodiff.
func New(cfg config.Config, opts Options, backend tensor.Backend, logger *Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tok, err := tokenizer.New(cfg.Data.TokenizerOptions())
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = Discard()
	}
	return &Trainer{
		cfg:     cfg,
		opts:    opts,
		log:     logger,
		store:   checkpoint.NewStore(opts.ExpDir),
		backend: autodiff.New(backend),
		tok:     tok,
		state:   Init,
	}, nil
}

// Run executes the state machine until the configured number of epochs is
// reached. Without training.epochs it returns only on error.
func (t *Trainer) Run() error {
	t.history = append(t.history[:0], Init)
	for t.state != Done {
		next, err := t.advance()
		if err != nil {
			return fmt.Errorf("%s: %w", t.state, err)
		}
		t.state = next
		t.history = append(t.history, next)
	}
	return nil
}

func (t *Trainer) advance() (State, error) {
	switch t.state {
	case Init:
		return t.decide()
	case Fresh:
		if err := t.fresh(); err != nil {
			return Done, err
		}
		return t.afterEpoch(), nil
	case Resuming:
		if err := t.resume(); err != nil {
			return Done, err
		}
		return t.afterEpoch(), nil
	case RunningEpoch:
		if err := t.runEpoch(); err != nil {
			return Done, err
		}
		return Checkpointing, nil
	case Checkpointing:
		if err := t.saveCheckpoint(); err != nil {
			return Done, err
		}
		t.epoch++
		return t.afterEpoch(), nil
	default:
		return Done, fmt.Errorf("unexpected state %s", t.state)
	}
}

// afterEpoch returns RunningEpoch while epochs remain.
func (t *Trainer) afterEpoch() State {
	if epochs := t.cfg.Training.Epochs; epochs != nil && t.epoch >= *epochs {
		return Done
	}
	return RunningEpoch
}

func (t *Trainer) decide() (State, error) {
	if t.opts.ForceRestart {
		t.log.Println("Force restart: ignoring any existing checkpoint")
		return Fresh, nil
	}
	exists, err := t.store.Exists()
	if err != nil {
		return Done, err
	}
	if !exists {
		return Fresh, nil
	}

	rec, err := t.store.Load()
	if err != nil {
		return Done, err
	}
	if rec.Training == nil {
		t.log.Println("Checkpoint holds no completed epoch, starting over")
		return Fresh, nil
	}
	t.record = rec
	return Resuming, nil
}

func (t *Trainer) fresh() error {
	t.log.Println("Preparing to train...")
	t.log.Println("Loading data...")
	records, err := dataset.Load(t.opts.DataPath)
	if err != nil {
		return err
	}

	t.log.Println("Tokenizing data...")
	t.words, t.chars = vocab.NewWords(), vocab.NewChars()
	examples, stats := dataset.Tokenize(records, t.tok, t.words, t.chars, t.dataOptions())
	t.logStats(stats)
	if len(examples) == 0 {
		return ErrNoExamples
	}

	var opts []bidaf.Option
	if t.opts.WordRep != "" {
		weight, err := t.pretrainedEmbeddings()
		if err != nil {
			return err
		}
		opts = append(opts, bidaf.WithWordEmbeddings(weight))
	}

	t.log.Println("Creating model...")
	if t.model, err = bidaf.New(t.cfg.BiDAF, t.words.Len(), t.chars.Len(), opts...); err != nil {
		return err
	}
	t.adam = optim.NewAdam(t.model.Parameters(), t.cfg.Training.Adam())
	t.epoch, t.step = 0, 0

	if err := t.store.SaveVocabulary(t.words, t.chars, t.meta()); err != nil {
		return err
	}
	return t.prepareBatches(examples)
}

func (t *Trainer) resume() error {
	rec := t.record
	t.log.Printf("Resuming training after epoch %d...", rec.Training.Epoch)
	t.words, t.chars = rec.Words, rec.Chars

	var err error
	if t.model, err = bidaf.New(t.cfg.BiDAF, t.words.Len(), t.chars.Len()); err != nil {
		return err
	}
	if err := t.model.LoadStateDict(rec.Training.Model); err != nil {
		return err
	}

	switch rec.Optimizer.Status {
	case checkpoint.Valid:
		t.adam = optim.NewAdam(t.model.Parameters(), rec.Optimizer.Config)
		if err := t.adam.LoadState(rec.Optimizer.State); err != nil {
			return fmt.Errorf("%w: %w", ErrOptimizerState, err)
		}
		if rec.Optimizer.Config != t.cfg.Training.Adam() {
			t.log.Printf("Optimizer hyperparameters restored from checkpoint: %+v", rec.Optimizer.Config)
		}
	case checkpoint.Absent:
		t.log.Println("No optimizer state in checkpoint, starting optimizer with empty history")
		t.adam = optim.NewAdam(t.model.Parameters(), t.cfg.Training.Adam())
	default:
		return fmt.Errorf("%w: %w", ErrOptimizerState, rec.Optimizer.Err)
	}

	records, err := dataset.Load(t.opts.DataPath)
	if err != nil {
		return err
	}
	examples, stats, err := dataset.Retokenize(records, t.tok, t.words, t.chars, t.dataOptions())
	if err != nil {
		return err
	}
	t.logStats(stats)

	t.epoch = rec.Training.Epoch + 1
	t.step = rec.Training.Step
	t.record = nil
	return t.prepareBatches(examples)
}

func (t *Trainer) prepareBatches(examples []dataset.Example) error {
	if len(examples) == 0 {
		return ErrNoExamples
	}
	t.examples = examples
	if err := t.beginEpoch(); err != nil {
		return err
	}
	t.log.Printf("%d examples, %d batches per epoch", t.gen.NumExamples(), t.gen.Len())
	return nil
}

// beginEpoch seeds the shuffle and teacher-forcing streams of the current
// epoch from training.seed and the epoch number alone, so a resumed run
// replays the epochs a continuous run would have trained.
func (t *Trainer) beginEpoch() error {
	seed := t.cfg.Training.Seed + int64(t.epoch)
	gen, err := dataset.NewEpochGen(t.examples, t.cfg.Training.BatchSize,
		rand.New(rand.NewSource(seed))) //nolint:gosec // shuffling only
	if err != nil {
		return err
	}
	t.gen = gen
	t.forcing = rand.New(rand.NewSource(^seed)) //nolint:gosec // teacher forcing only
	return nil
}

func (t *Trainer) pretrainedEmbeddings() (*tensor.RawTensor, error) {
	t.log.Println("Loading pre-trained embeddings...")
	pre, err := embedding.LoadTextFile(t.opts.WordRep, embedding.Keep(t.words))
	if err != nil {
		return nil, err
	}
	mean, cov, err := pre.NormStats(t.opts.UseCovariance)
	if err != nil {
		return nil, err
	}
	oov, err := embedding.NewNormSource(mean, cov, embedding.DefaultSeed, t.opts.UseCovariance)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(t.cfg.BiDAF.Seed)) //nolint:gosec // weight init
	base := tensor.Randn(tensor.Shape{t.words.Len(), t.cfg.BiDAF.WordDim}, 1, rng, tensor.CPU)
	weight, report, err := embedding.Inject(t.words, 0, base, pre, oov)
	if err != nil {
		return nil, err
	}
	t.log.Printf("Embeddings: %d pre-trained, %d drawn for unknown tokens", report.Pretrained, report.Drawn)
	return weight, nil
}

func (t *Trainer) runEpoch() error {
	if err := t.beginEpoch(); err != nil {
		return err
	}
	t.log.Printf("--- STARTING EPOCH : %d ---", t.epoch)

	var total float64
	batches := 0
	for i, batch := range t.gen.Batches() {
		loss, err := t.trainBatch(batch)
		if err != nil {
			return fmt.Errorf("epoch %d batch %d: %w", t.epoch, i, err)
		}
		total += loss
		batches++

		if i%t.cfg.Training.LogEvery == 0 {
			t.log.Printf("Mean [TRAIN] Loss for batch %d = %.2f", i, loss)
			t.log.Printf("Mean [TRAIN] Perplexity for batch %d = %.2f", i, Perplexity(loss))
		}
	}

	t.loss = total / float64(max(batches, 1))
	t.log.Printf("--- END OF EPOCH : %d --- mean loss %.4f", t.epoch, t.loss)
	return nil
}

// trainBatch runs forward, backward and one Adam step, returning the mean
// span loss of the batch.
func (t *Trainer) trainBatch(batch *dataset.Batch) (float64, error) {
	b := t.backend
	tape := b.Tape()
	defer tape.Clear()

	t.adam.ZeroGrad()
	tape.StartRecording()

	teacherForce := t.forcing.Float64() < t.cfg.Training.TeacherForcingRatio
	losses := make([]*tensor.RawTensor, 0, batch.Size())
	for k, ex := range batch.Examples {
		out := t.model.Forward(b, batch.Passages.Sequence(k), batch.Queries.Sequence(k), ex.Start, teacherForce)
		losses = append(losses, nn.SpanLoss(b, out.StartLogits, out.EndLogits, ex.Start, ex.End))
	}
	loss := nn.MeanLoss(b, losses)
	value := float64(loss.Item())
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: loss %v", ErrNumerical, value)
	}

	grads := b.Backward(loss)
	tape.StopRecording()

	params := t.model.Parameters()
	nn.CollectGrads(params, grads)
	for _, p := range params {
		if g := p.Grad(); g != nil && !tensor.IsFinite(g) {
			return 0, fmt.Errorf("%w: gradient of %s", ErrNumerical, p.Name())
		}
	}

	t.adam.Step(grads)
	t.step++
	return value, nil
}

func (t *Trainer) saveCheckpoint() error {
	rec := &checkpoint.Record{
		Words: t.words,
		Chars: t.chars,
		Training: &checkpoint.Training{
			Epoch: t.epoch,
			Step:  t.step,
			Loss:  t.loss,
			Model: t.model.StateDict(),
		},
		Optimizer: checkpoint.ValidOptimizer(t.adam.State(), t.adam.Config()),
		Meta:      t.meta(),
	}
	if err := t.store.Save(rec); err != nil {
		return err
	}
	t.log.Printf("Checkpoint written for epoch %d (%d steps)", t.epoch, t.step)
	return nil
}

func (t *Trainer) meta() map[string]any {
	return map[string]any{
		"tokenizer": t.tok.Name(),
		"backend":   t.backend.Name(),
	}
}

func (t *Trainer) dataOptions() dataset.Options {
	return dataset.Options{Limit: t.cfg.Training.Limit}
}

func (t *Trainer) logStats(s dataset.Stats) {
	t.log.Printf("%d records: %d kept, %d unanswered, %d without span, %d beyond limit",
		s.Records, s.Kept, s.Unanswered, s.NoSpan, s.BeyondLimit)
	t.log.Printf("Vocabulary: %d words, %d characters", t.words.Len(), t.chars.Len())
}

// History returns the states visited by the last Run.
func (t *Trainer) History() []State {
	out := make([]State, len(t.history))
	copy(out, t.history)
	return out
}

// Model returns the model, or nil before Fresh or Resuming completed.
func (t *Trainer) Model() *bidaf.Model {
	return t.model
}

// Vocabularies returns the word and character vocabularies.
func (t *Trainer) Vocabularies() (words, chars *vocab.Vocabulary) {
	return t.words, t.chars
}

// Epoch returns the next epoch to run.
func (t *Trainer) Epoch() int {
	return t.epoch
}

// Steps returns the number of optimizer steps taken, including resumed ones.
func (t *Trainer) Steps() int64 {
	return t.step
}

// Perplexity converts a span loss (two pointer decisions) into the
// perplexity of a single decision.
func Perplexity(loss float64) float64 {
	return math.Exp(loss / 2)
}
