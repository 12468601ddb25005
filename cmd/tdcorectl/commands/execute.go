package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roasbeef/tdcore/internal/client"
	"github.com/roasbeef/tdcore/internal/tlobject"
)

var executeCmd = &cobra.Command{
	Use:   "execute <request-json>",
	Short: "Run a synchronous-subset request and print its result",
	Long: `execute parses <request-json> (e.g. {"@type":"getTextEntities","text":"hi"})
and runs it through client.Execute, which never constructs or touches any
client instance.`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func runExecute(cmd *cobra.Command, args []string) error {
	fnObj, _, err := tlobject.DecodeFunction(tlobject.Default, []byte(args[0]))
	if err != nil {
		return fmt.Errorf("parse request: %w", err)
	}

	obj, err := client.Execute(fnObj)
	if err != nil {
		obj = tlobject.NewError(400, "%v", err)
	}

	return printObject(cmd, obj, 0)
}

func printObject(cmd *cobra.Command, obj tlobject.Object, clientID client.ClientId) error {
	data, err := tlobject.EncodeResponse(obj, nil, int32(clientID))
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	if outputFormat == "json" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", obj.TypeName(), string(data))
	return nil
}
