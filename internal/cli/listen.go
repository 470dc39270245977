package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smpeer/smpeer/internal/orchestrator"
	"github.com/smpeer/smpeer/internal/smp/hmaceq"
)

var (
	listenSecret  string
	listenLocalID string
	listenTimeout time.Duration
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Register and answer incoming comparisons",
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, err := orchestrator.New(listenSecret, orchestrator.Options{
			LocalID: listenLocalID,
			Config:  configFromFlags(),
			Timeout: listenTimeout,
			Engine:  hmaceq.NewFactory(),
			Codec:   hmaceq.NewCodec(),
		})
		if err != nil {
			return err
		}

		_ = orch.On(orchestrator.EventSessionFinished, func(ev orchestrator.Event) {
			if ev.Result {
				fmt.Printf("%s: secrets match\n", ev.RemoteID)
			} else {
				fmt.Printf("%s: secrets differ\n", ev.RemoteID)
			}
		})
		_ = orch.On(orchestrator.EventError, func(ev orchestrator.Event) {
			fmt.Printf("error: %s\n", ev.Message)
		})
		_ = orch.On(orchestrator.EventServerDisconnected, func(orchestrator.Event) {
			fmt.Println("disconnected from rendezvous server")
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := orch.ConnectToPeerServer(ctx); err != nil {
			return err
		}

		id, err := orch.ID()
		if err != nil {
			return err
		}
		fmt.Printf("listening as %s\n", id)

		<-ctx.Done()
		_ = orch.Disconnect()
		return nil
	},
}

func init() {
	listenCmd.Flags().StringVar(&listenSecret, "secret", "", "secret to compare")
	listenCmd.Flags().StringVar(&listenLocalID, "id", "", "identity to register (empty lets the server assign one)")
	listenCmd.Flags().DurationVar(&listenTimeout, "timeout", orchestrator.DefaultTimeout, "session timeout")
	_ = listenCmd.MarkFlagRequired("secret")
}
