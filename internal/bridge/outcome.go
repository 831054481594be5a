package bridge

import "context"

// Outcome is the value form of a Send result: exactly one of Body (with a
// nil Err) or Err is meaningful.
type Outcome struct {
	Body string
	Err  error
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Kind returns the failure kind, or KindUnknown for a success.
func (o Outcome) Kind() Kind {
	return KindOf(o.Err)
}

// Call runs s.Send and packs the result into an Outcome.
func Call(ctx context.Context, s Sender, text string) Outcome {
	body, err := s.Send(ctx, text)
	if err != nil {
		return Outcome{Err: err}
	}

	return Outcome{Body: body}
}

// Go starts Send in its own goroutine and returns a handle that receives
// exactly one Outcome. The channel is buffered, so a caller that walks away
// after cancelling ctx does not leak the goroutine.
func Go(ctx context.Context, s Sender, text string) <-chan Outcome {
	ch := make(chan Outcome, 1)

	go func() {
		defer close(ch)
		ch <- Call(ctx, s, text)
	}()

	return ch
}

// OutcomeLabel names a Send result for logs, metrics and journals:
// "success" or the failure kind.
func OutcomeLabel(err error) string {
	if err == nil {
		return "success"
	}

	return KindOf(err).String()
}
