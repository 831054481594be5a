//go:build js && wasm

// Command wasm exposes the bridge to a browser page. It registers
// textbridge.send(text) on globalThis, which returns a Promise resolving
// with the response body or rejecting with {kind, message, status}.
package main

import (
	"context"
	"log/slog"
	"os"
	"syscall/js"

	"textbridge/internal/bridge"
	"textbridge/internal/config"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	endpoint := config.DefaultEndpointURL
	if v := js.Global().Get("TEXTBRIDGE_ENDPOINT"); v.Type() == js.TypeString && v.String() != "" {
		endpoint = v.String()
	}

	b, err := bridge.New(endpoint, bridge.WithLogger(log))
	if err != nil {
		log.Error("Failed to create bridge",
			"error", err,
			"endpoint", endpoint)

		return
	}

	send := js.FuncOf(func(_ js.Value, args []js.Value) any {
		text := ""
		if len(args) > 0 && args[0].Type() == js.TypeString {
			text = args[0].String()
		}

		return newPromise(func(resolve, reject js.Value) {
			out := <-bridge.Go(context.Background(), b, text)
			if out.OK() {
				resolve.Invoke(out.Body)
				return
			}

			reject.Invoke(map[string]any{
				"kind":    bridge.OutcomeLabel(out.Err),
				"message": out.Err.Error(),
				"status":  bridge.StatusCodeOf(out.Err),
			})
		})
	})
	defer send.Release()

	js.Global().Set("textbridge", map[string]any{
		"send":     send,
		"endpoint": b.Endpoint(),
	})

	log.Info("Bridge is exported",
		"endpoint", b.Endpoint())

	select {}
}

// newPromise runs fn on its own goroutine so blocking fetch calls do not
// stall the JS event loop.
func newPromise(fn func(resolve, reject js.Value)) js.Value {
	var executor js.Func
	executor = js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		go func() {
			defer executor.Release()
			fn(resolve, reject)
		}()
		return nil
	})

	return js.Global().Get("Promise").New(executor)
}
