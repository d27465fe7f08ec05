package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"msgport/internal/object"
	"msgport/internal/port"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var replyTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <service> [message-json]",
		Short: "Send a message object to a service",
		Long: "Send a message to a named service over the message plane. The message\n" +
			"is a JSON object; omitting it sends an empty dictionary. With --wait the\n" +
			"command blocks until the service finishes handling the message.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := args[0]
			msg := object.Dict{}
			if len(args) == 2 {
				var raw map[string]any
				if err := json.Unmarshal([]byte(args[1]), &raw); err != nil {
					return fmt.Errorf("parse message: %w", err)
				}
				normalized, err := object.Normalize(raw)
				if err != nil {
					return fmt.Errorf("convert message: %w", err)
				}
				dict, ok := normalized.(object.Dict)
				if !ok {
					return fmt.Errorf("message must be a JSON object")
				}
				msg = dict
			}

			stdout := cmd.OutOrStdout()
			events := make(chan object.Dict, 8)
			handler := port.HandlerFunc(func(event object.Dict, err error) {
				if err == nil && event != nil {
					events <- event
				}
			})

			conn, err := port.Connect(ctx.messageSocketPath(), service, handler)
			if err != nil {
				return wrapDialError(err, ctx.messageSocketPath())
			}
			defer conn.Close()

			if err := conn.Send(msg, wait); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			fmt.Fprintf(stdout, "Sent to %s\n", service)

			select {
			case reply := <-events:
				encoded, encErr := json.MarshalIndent(replyForOutput(reply), "", "  ")
				if encErr != nil {
					return fmt.Errorf("encode reply: %w", encErr)
				}
				fmt.Fprintln(stdout, string(encoded))
			case <-time.After(replyTimeout):
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Block until the service finishes handling the message")
	cmd.Flags().DurationVar(&replyTimeout, "reply-timeout", time.Second, "How long to wait for a reply before exiting")
	return cmd
}

// replyForOutput rewrites message-plane values into JSON-friendly ones.
func replyForOutput(v any) any {
	switch value := v.(type) {
	case object.Dict:
		out := make(map[string]any, len(value))
		value.Apply(func(key string, inner any) bool {
			out[key] = replyForOutput(inner)
			return true
		})
		return out
	case object.Array:
		out := make([]any, len(value))
		value.Apply(func(i int, inner any) bool {
			out[i] = replyForOutput(inner)
			return true
		})
		return out
	case object.UUID:
		return value.Canonical()
	case []byte:
		return fmt.Sprintf("%x", value)
	case error:
		return value.Error()
	default:
		return value
	}
}
