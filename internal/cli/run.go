package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smpeer/smpeer/internal/orchestrator"
	"github.com/smpeer/smpeer/internal/smp/hmaceq"
)

var (
	runSecret  string
	runLocalID string
	runRemote  string
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compare a secret against a remote peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		orch, err := orchestrator.New(runSecret, orchestrator.Options{
			LocalID: runLocalID,
			Config:  configFromFlags(),
			Timeout: runTimeout,
			Engine:  hmaceq.NewFactory(),
			Codec:   hmaceq.NewCodec(),
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := orch.ConnectToPeerServer(ctx); err != nil {
			return err
		}
		defer func() { _ = orch.Disconnect() }()

		id, err := orch.ID()
		if err != nil {
			return err
		}
		fmt.Printf("registered as %s\n", id)

		equal, err := orch.RunSMP(ctx, runRemote)
		if err != nil {
			return err
		}

		if equal {
			fmt.Println("secrets match")
		} else {
			fmt.Println("secrets differ")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runSecret, "secret", "", "secret to compare")
	runCmd.Flags().StringVar(&runLocalID, "id", "", "identity to register (empty lets the server assign one)")
	runCmd.Flags().StringVar(&runRemote, "remote", "", "identity of the peer to compare against")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", orchestrator.DefaultTimeout, "session timeout")
	_ = runCmd.MarkFlagRequired("secret")
	_ = runCmd.MarkFlagRequired("remote")
}
