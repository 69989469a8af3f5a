package main

import (
	"fmt"
	"os"
)

const usage = `usage: admin <command> [flags]

commands:
  state          print live loop status (server admin HTTP)
  reset          force the game-over reset (server admin HTTP)
  db             query the store: leaderboard | profile <identity> | global
  journal        print event journal entries
  import-legacy  import a legacy database.json into the store
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "state":
		stateCmd(args)
	case "reset":
		resetCmd(args)
	case "db":
		dbCmd(args)
	case "journal":
		journalCmd(args)
	case "import-legacy":
		importLegacyCmd(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func fail(code int, prefix string, err error) {
	fmt.Fprintln(os.Stderr, prefix+":", err)
	os.Exit(code)
}
