package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pixelvault/shopchat/internal/chat"
	"github.com/pixelvault/shopchat/internal/config"
	"github.com/pixelvault/shopchat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive assistant panel",
	Long: `Open the interactive assistant panel.

The panel streams replies as they are generated, restores the active
thread's history, and offers quick address and payment selection when the
assistant asks for them during a purchase.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("chat needs an interactive terminal; use 'shopchat ask' instead")
	}

	// Logs go to the file only: stderr writes would tear the panel.
	logger, cleanup := config.SetupFileLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	session := chat.NewSession(chat.Dependencies{
		Streamer:  apiClient,
		History:   apiClient,
		Threads:   apiClient,
		Addresses: apiClient,
		Cart:      apiClient,
		Logger:    logger,
	})

	openCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	session.Open(openCtx)
	cancel()

	return tui.Run(session, apiClient)
}
