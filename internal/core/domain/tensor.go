package domain

// Tensor is a single planar CHW float32 image, the layout the network consumes and produces.
type Tensor struct {
	C, H, W int
	Data    []float32
}

func NewTensor(c, h, w int) *Tensor {
	return &Tensor{C: c, H: h, W: w, Data: make([]float32, c*h*w)}
}

func (t *Tensor) index(c, y, x int) int {
	return (c*t.H+y)*t.W + x
}

func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[t.index(c, y, x)]
}

func (t *Tensor) Set(c, y, x int, v float32) {
	t.Data[t.index(c, y, x)] = v
}

// Crop copies the half-open region [y0,y1) x [x0,x1) of every channel into a new tensor.
func (t *Tensor) Crop(y0, y1, x0, x1 int) *Tensor {
	out := NewTensor(t.C, y1-y0, x1-x0)
	for c := 0; c < t.C; c++ {
		for y := y0; y < y1; y++ {
			src := t.index(c, y, x0)
			copy(out.Data[out.index(c, y-y0, 0):out.index(c, y-y0, 0)+out.W], t.Data[src:src+out.W])
		}
	}
	return out
}

// Paste writes src into t with its top-left corner at (y0, x0). Channel counts must match.
func (t *Tensor) Paste(src *Tensor, y0, x0 int) {
	for c := 0; c < src.C; c++ {
		for y := 0; y < src.H; y++ {
			dst := t.index(c, y0+y, x0)
			copy(t.Data[dst:dst+src.W], src.Data[src.index(c, y, 0):src.index(c, y, 0)+src.W])
		}
	}
}

// PadReflect grows the tensor by bottom rows and right columns, mirroring the content around the last row and
// column without repeating the edge. Single-pixel axes have nothing to mirror and repeat their only value.
func (t *Tensor) PadReflect(bottom, right int) *Tensor {
	if bottom == 0 && right == 0 {
		return t
	}

	out := NewTensor(t.C, t.H+bottom, t.W+right)
	for c := 0; c < t.C; c++ {
		for y := 0; y < out.H; y++ {
			sy := reflect(y, t.H)
			for x := 0; x < out.W; x++ {
				out.Data[out.index(c, y, x)] = t.Data[t.index(c, sy, reflect(x, t.W))]
			}
		}
	}
	return out
}

func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i >= n {
		i = period - i
	}
	return i
}
