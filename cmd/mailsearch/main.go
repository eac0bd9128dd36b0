// Command mailsearch indexes a Maildir and searches it lexically and semantically.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/mailsearch/cmd/mailsearch/cmd"
	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, mserrors.FormatForCLI(err))
		os.Exit(1)
	}
}
