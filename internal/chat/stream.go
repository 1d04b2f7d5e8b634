package chat

import (
	"context"
	"strings"
)

// streamChunkWords is how many words each streamed segment carries.
const streamChunkWords = 4

// SendStream answers a chat message and delivers the reply as an ordered
// sequence of text segments. The full reply is generated and persisted
// first; streaming is a delivery concern only, so a consumer that goes
// away mid-stream never leaves a half-written conversation behind.
func (w *Worker) SendStream(ctx context.Context, userID, message string) (<-chan string, error) {
	reply, err := w.Send(ctx, userID, message)
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for _, segment := range splitSegments(reply.Text) {
			select {
			case <-ctx.Done():
				return
			case out <- segment:
			}
		}
	}()
	return out, nil
}

// splitSegments chunks the reply on word boundaries. Concatenating the
// segments reproduces the reply with whitespace normalized.
func splitSegments(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var segments []string
	for start := 0; start < len(words); start += streamChunkWords {
		end := start + streamChunkWords
		if end > len(words) {
			end = len(words)
		}
		segment := strings.Join(words[start:end], " ")
		if end < len(words) {
			segment += " "
		}
		segments = append(segments, segment)
	}
	return segments
}
