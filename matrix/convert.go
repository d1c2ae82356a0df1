package matrix

// Convert adapts a Source of one element type to another. The conversion is
// Go's numeric conversion: float64 to uint32 truncates toward zero, so
// normalize-then-count pipelines should round explicitly first.
func Convert[F, T Value](src Source[F]) Source[T] {
	return &converted[F, T]{src: src}
}

type converted[F, T Value] struct {
	src Source[F]
}

func (c *converted[F, T]) Rows() uint32                     { return c.src.Rows() }
func (c *converted[F, T]) Cols() uint32                     { return c.src.Cols() }
func (c *converted[F, T]) RowNames(id uint32) (string, bool) { return c.src.RowNames(id) }
func (c *converted[F, T]) ColNames(id uint32) (string, bool) { return c.src.ColNames(id) }
func (c *converted[F, T]) NextCol() bool                    { return c.src.NextCol() }
func (c *converted[F, T]) CurrentCol() uint32               { return c.src.CurrentCol() }
func (c *converted[F, T]) NextValue() bool                  { return c.src.NextValue() }
func (c *converted[F, T]) Row() uint32                      { return c.src.Row() }
func (c *converted[F, T]) Val() T                           { return T(c.src.Val()) }
func (c *converted[F, T]) SeekCol(col uint32) error         { return c.src.SeekCol(col) }
func (c *converted[F, T]) Restart() error                   { return c.src.Restart() }
func (c *converted[F, T]) Err() error                       { return c.src.Err() }
