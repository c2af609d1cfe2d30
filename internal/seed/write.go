package seed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/gitlytix/internal/domain/model"
)

// WriteNDJSON writes one event per line, the format the loader reads.
func WriteNDJSON(w io.Writer, events []model.Event) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("encode event %s: %w", events[i].ID, err)
		}
	}
	return bw.Flush()
}
