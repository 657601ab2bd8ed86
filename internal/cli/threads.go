package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pixelvault/shopchat/internal/chat"
	"github.com/pixelvault/shopchat/internal/config"
)

var (
	deleteForce bool
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Manage chat threads",
	Long: `Manage your chat threads on the server.

Subcommands:
  list    List threads, most recent first (default)
  rename  Rename a thread
  delete  Delete a thread and all its messages

Examples:
  shopchat threads
  shopchat threads rename th_123 "Birthday gifts"
  shopchat threads delete th_123 --force`,
	RunE: runThreadsList,
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threads",
	RunE:  runThreadsList,
}

var threadsRenameCmd = &cobra.Command{
	Use:   "rename <thread> <title>",
	Short: "Rename a thread",
	Args:  cobra.ExactArgs(2),
	RunE:  runThreadsRename,
}

var threadsDeleteCmd = &cobra.Command{
	Use:   "delete <thread>",
	Short: "Delete a thread and all its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreadsDelete,
}

func init() {
	threadsDeleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")

	threadsCmd.AddCommand(threadsListCmd)
	threadsCmd.AddCommand(threadsRenameCmd)
	threadsCmd.AddCommand(threadsDeleteCmd)
}

func runThreadsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	threads, err := apiClient.ListThreads(ctx)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}

	if len(threads) == 0 {
		fmt.Println("No threads found.")
		return nil
	}

	fmt.Printf("Threads (%d):\n\n", len(threads))
	for _, t := range threads {
		fmt.Printf("- %s", t.DisplayTitle())
		if verbose {
			fmt.Printf(" [%s]", t.ID)
			if !t.LastMessageAt.IsZero() {
				fmt.Printf(" %s", t.LastMessageAt.Format("2006-01-02 15:04"))
			}
		}
		fmt.Println()
	}

	return nil
}

func runThreadsRename(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	// The manager applies the title trimming and length cap the server
	// expects, same as the interactive panel.
	manager := chat.NewThreadManager(apiClient, apiClient, logger)
	if err := manager.Rename(ctx, args[0], args[1]); err != nil {
		return err
	}

	fmt.Printf("Renamed: %s\n", args[0])
	return nil
}

func runThreadsDelete(cmd *cobra.Command, args []string) error {
	threadID := args[0]
	ctx := context.Background()

	if !deleteForce {
		fmt.Printf("About to delete thread %s and all its messages.\n", threadID)
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := apiClient.DeleteThread(ctx, threadID); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}

	fmt.Printf("Deleted: %s\n", threadID)
	return nil
}
