package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/tdcore/internal/client"
	"github.com/roasbeef/tdcore/internal/tlobject"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <request-json>",
	Short: "Open a client instance, send one request, and print everything it produces",
	Long: `send creates a fresh client id, submits <request-json> with request_id 1,
and prints every response and update the instance produces until the
matching response arrives, then closes the instance and prints the
terminal authorizationStateClosed update.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second,
		"How long to wait for each pending response or update")
}

const requestIDForSend client.RequestId = 1

func runSend(cmd *cobra.Command, args []string) error {
	fnObj, _, err := tlobject.DecodeFunction(tlobject.Default, []byte(args[0]))
	if err != nil {
		return fmt.Errorf("parse request: %w", err)
	}

	mgr := newManager()
	defer mgr.Finish()

	ctx := context.Background()
	id := mgr.CreateClientId()

	if err := mgr.Send(ctx, id, requestIDForSend, fnObj); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if err := drainUntil(cmd, mgr, id, requestIDForSend); err != nil {
		return err
	}

	if err := mgr.Send(ctx, id, requestIDForSend+1, &tlobject.Close{}); err != nil {
		return fmt.Errorf("send close: %w", err)
	}

	return drainUntilClosed(cmd, mgr, id)
}

// drainUntil prints every response/update for clientID until the one
// matching wantReqID is seen.
func drainUntil(cmd *cobra.Command, mgr *client.Manager, clientID client.ClientId, wantReqID client.RequestId) error {
	for {
		resp, ok := mgr.Receive(sendTimeout)
		if !ok {
			return fmt.Errorf("timed out waiting for request %d", wantReqID)
		}
		if resp.ClientID != clientID {
			continue
		}

		if err := printObject(cmd, resp.Object, resp.ClientID); err != nil {
			return err
		}
		if resp.RequestID == wantReqID {
			return nil
		}
	}
}

// drainUntilClosed prints every response/update for clientID until the
// updateAuthorizationState{authorizationStateClosed} update is seen.
func drainUntilClosed(cmd *cobra.Command, mgr *client.Manager, clientID client.ClientId) error {
	for {
		resp, ok := mgr.Receive(sendTimeout)
		if !ok {
			return fmt.Errorf("timed out waiting for close to complete")
		}
		if resp.ClientID != clientID {
			continue
		}

		if err := printObject(cmd, resp.Object, resp.ClientID); err != nil {
			return err
		}

		update, ok := resp.Object.(*tlobject.UpdateAuthorizationState)
		if !ok {
			continue
		}
		if _, ok := update.AuthorizationState.(*tlobject.AuthorizationStateClosed); ok {
			return nil
		}
	}
}
