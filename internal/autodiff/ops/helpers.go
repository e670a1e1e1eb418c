package ops

import "github.com/born-ml/mrcqa/internal/tensor"

// reduceBroadcast sums grad back down to the shape of a broadcast operand.
//
//	BroadcastRow: [rows, cols] -> [1, cols]
//	BroadcastCol: [rows, cols] -> [rows, 1]
func reduceBroadcast(grad *tensor.RawTensor, mode tensor.Broadcast2D) *tensor.RawTensor {
	rows, cols := grad.Rows(), grad.Cols()

	switch mode {
	case tensor.BroadcastRow:
		out := tensor.Zeros(tensor.Shape{1, cols}, grad.Device())
		dst := out.AsFloat32()
		for i := 0; i < rows; i++ {
			for j, v := range grad.Row(i) {
				dst[j] += v
			}
		}
		return out
	case tensor.BroadcastCol:
		out := tensor.Zeros(tensor.Shape{rows, 1}, grad.Device())
		dst := out.AsFloat32()
		for i := 0; i < rows; i++ {
			var sum float32
			for _, v := range grad.Row(i) {
				sum += v
			}
			dst[i] = sum
		}
		return out
	default:
		return grad
	}
}
