package array

import (
	"fmt"

	"github.com/aescanero/dagoml/pkg/fingerprint"
	"gonum.org/v1/gonum/mat"
)

// Chunked is a matrix split into consecutive blocks of rows.
type Chunked struct {
	chunks []*mat.Dense
	rows   int
	cols   int
	token  string
}

// FromDense partitions m into blocks of at most rows rows. The data is copied.
func FromDense(m mat.Matrix, rows int) (*Chunked, error) {
	if rows <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", rows)
	}
	r, c := m.Dims()
	src := mat.DenseCopyOf(m)

	var chunks []*mat.Dense
	for start := 0; start < r; start += rows {
		end := min(start+rows, r)
		chunks = append(chunks, mat.DenseCopyOf(src.Slice(start, end, 0, c)))
	}

	parts := make([]any, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch
	}
	return &Chunked{
		chunks: chunks,
		rows:   r,
		cols:   c,
		token:  fingerprint.Tokenize("chunked-matrix", parts),
	}, nil
}

// Chunks returns the row blocks in order. Callers must not modify them.
func (c *Chunked) Chunks() []*mat.Dense { return c.chunks }

// NumChunks returns the number of row blocks.
func (c *Chunked) NumChunks() int { return len(c.chunks) }

// Dims returns the dimensions of the whole matrix.
func (c *Chunked) Dims() (int, int) { return c.rows, c.cols }

// Token implements fingerprint.Tokenizer.
func (c *Chunked) Token() string { return c.token }

// Dense consolidates the chunks into one matrix.
func (c *Chunked) Dense() *mat.Dense {
	ms := make([]mat.Matrix, len(c.chunks))
	for i, ch := range c.chunks {
		ms[i] = ch
	}
	return Stack(ms...)
}

// ChunkedVector is a vector split into consecutive blocks.
type ChunkedVector struct {
	chunks []*mat.VecDense
	n      int
	token  string
}

// FromVector partitions v into blocks of at most n elements. The data is copied.
func FromVector(v mat.Vector, n int) (*ChunkedVector, error) {
	if n <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", n)
	}
	length := v.Len()

	var chunks []*mat.VecDense
	for start := 0; start < length; start += n {
		end := min(start+n, length)
		ch := mat.NewVecDense(end-start, nil)
		for i := start; i < end; i++ {
			ch.SetVec(i-start, v.AtVec(i))
		}
		chunks = append(chunks, ch)
	}

	parts := make([]any, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch
	}
	return &ChunkedVector{
		chunks: chunks,
		n:      length,
		token:  fingerprint.Tokenize("chunked-vector", parts),
	}, nil
}

// Chunks returns the blocks in order. Callers must not modify them.
func (c *ChunkedVector) Chunks() []*mat.VecDense { return c.chunks }

// NumChunks returns the number of blocks.
func (c *ChunkedVector) NumChunks() int { return len(c.chunks) }

// Len returns the length of the whole vector.
func (c *ChunkedVector) Len() int { return c.n }

// Token implements fingerprint.Tokenizer.
func (c *ChunkedVector) Token() string { return c.token }

// VecDense consolidates the chunks into one vector.
func (c *ChunkedVector) VecDense() *mat.VecDense {
	vs := make([]mat.Vector, len(c.chunks))
	for i, ch := range c.chunks {
		vs[i] = ch
	}
	return Join(vs...)
}

// Stack concatenates matrices with equal column counts row-wise.
func Stack(ms ...mat.Matrix) *mat.Dense {
	rows, cols := 0, 0
	for i, m := range ms {
		r, c := m.Dims()
		if i == 0 {
			cols = c
		} else if c != cols {
			panic(fmt.Sprintf("array: column mismatch in Stack: %d != %d", c, cols))
		}
		rows += r
	}
	if rows == 0 {
		return &mat.Dense{}
	}

	out := mat.NewDense(rows, cols, nil)
	at := 0
	for _, m := range ms {
		r, _ := m.Dims()
		if r == 0 {
			continue
		}
		out.Slice(at, at+r, 0, cols).(*mat.Dense).Copy(m)
		at += r
	}
	return out
}

// Join concatenates vectors.
func Join(vs ...mat.Vector) *mat.VecDense {
	n := 0
	for _, v := range vs {
		n += v.Len()
	}
	if n == 0 {
		return &mat.VecDense{}
	}
	out := mat.NewVecDense(n, nil)
	at := 0
	for _, v := range vs {
		for i := 0; i < v.Len(); i++ {
			out.SetVec(at+i, v.AtVec(i))
		}
		at += v.Len()
	}
	return out
}
