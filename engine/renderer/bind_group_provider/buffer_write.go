package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
)

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// WriteBuffers applies the writes in order against each binding's current handle.
//
// Parameters:
//   - r: the renderer that performs the uploads
//   - writes: the writes to apply
//
// Returns:
//   - error: the first write that fails
func WriteBuffers(r renderer.Renderer, writes ...BufferWrite) error {
	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			return fmt.Errorf("bind group %q binding %d has no buffer", w.Provider.Label(), w.Binding)
		}
		if err := r.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return err
		}
	}
	return nil
}
