package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pixelvault/shopchat/internal/chat"
	"github.com/pixelvault/shopchat/internal/config"
	"github.com/pixelvault/shopchat/internal/stream"
)

var (
	askThread   string
	askNewChat  bool
	askNoStream bool
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and print the assistant's reply",
	Long: `Send a single message to the shopping assistant and print the reply.

By default the reply is streamed to stdout as it is generated. Use
--no-stream to wait for the complete reply instead.

Examples:
  shopchat ask "What are today's deals on RPGs?"
  shopchat ask "Where is my last order?" --thread th_123
  shopchat ask "Recommend a co-op game" --new`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askThread, "thread", "t", "", "continue a specific thread")
	askCmd.Flags().BoolVar(&askNewChat, "new", false, "start a new thread")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "wait for the full reply instead of streaming")
}

func runAsk(cmd *cobra.Command, args []string) error {
	message := args[0]
	ctx := context.Background()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	logger.Debug("ask", "thread_id", askThread, "new_chat", askNewChat)

	opts := chat.SendOptions{ThreadID: askThread, NewChat: askNewChat}

	if askNoStream {
		reply, err := apiClient.SendMessage(ctx, message, opts)
		if err != nil {
			return err
		}
		fmt.Println(reply.Message)
		printReferences(reply.ProductIDs, stream.Meta{}, reply.ThreadID)
		return nil
	}

	var (
		productIDs []string
		meta       stream.Meta
		threadID   string
		failed     string
	)
	err := apiClient.SendMessageStream(ctx, message, opts, func(ev stream.Event) {
		switch ev.Kind {
		case stream.KindChunk:
			fmt.Print(ev.Text)
		case stream.KindDone:
			productIDs = ev.ProductIDs
			meta = ev.Meta
			threadID = ev.ThreadID
		case stream.KindError:
			failed = ev.Text
		}
	})
	fmt.Println()
	if err != nil {
		return err
	}
	if failed != "" {
		return fmt.Errorf("assistant error: %s", failed)
	}

	printReferences(productIDs, meta, threadID)
	return nil
}

// printReferences prints the settled turn's product and purchase references.
func printReferences(productIDs []string, meta stream.Meta, threadID string) {
	if len(productIDs) > 0 {
		fmt.Printf("\nProducts: %s\n", strings.Join(productIDs, ", "))
	}
	if meta.OrderID != "" {
		fmt.Printf("Order placed: %s", meta.OrderID)
		if meta.InvoiceID != "" {
			fmt.Printf(" (invoice %s)", meta.InvoiceID)
		}
		fmt.Println()
	}
	if meta.PaymentURL != "" {
		fmt.Printf("Complete payment at: %s\n", meta.PaymentURL)
	}
	if verbose && threadID != "" {
		fmt.Printf("Thread: %s\n", threadID)
	}
}
