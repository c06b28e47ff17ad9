// questsim evaluates every skill loadout of a hero against simulated
// dungeon encounters and reports which loadouts win most often.
//
// Usage:
//
//	questsim [command] [options]
//
// Commands:
//
//	run    - Run every pending study in a docket
//	count  - Print loadout counts and the first and last loadout of each study
//	reset  - Clear completion flags so studies run again
//	report - Print the best stored loadouts of each study
package main

import (
	"flag"
	"fmt"
	"os"
)

const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitError)
	}

	var code int
	switch os.Args[1] {
	case "run":
		code = runDocket(os.Args[2:])
	case "count":
		code = countStudies(os.Args[2:])
	case "reset":
		code = resetDocket(os.Args[2:])
	case "report":
		code = reportStudies(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		code = exitError
	}
	os.Exit(code)
}

func printUsage() {
	fmt.Println(`questsim - dungeon loadout simulator

Usage: questsim <command> [options]

Commands:
  run    Run every pending study in a docket
  count  Print loadout counts and the first and last loadout of each study
  reset  Clear completion flags so studies run again
  report Print the best stored loadouts of each study

Examples:
  questsim run -docket=data/docket.yaml -workers=8
  questsim count -docket=data/docket.yaml kat-crit
  questsim reset -docket=data/docket.yaml kat-crit
  questsim report -top=5 kat-crit

Use "questsim <command> -h" for more information about a command.`)
}

// inputs are the file flags shared by every command.
type inputs struct {
	config   *string
	docket   *string
	dungeons *string
	skills   *string
	team     *string
}

func inputFlags(fs *flag.FlagSet) inputs {
	return inputs{
		config:   fs.String("config", "data/questsim.yaml", "Path to application config YAML file"),
		docket:   fs.String("docket", "data/docket.yaml", "Path to docket YAML file (updated in place)"),
		dungeons: fs.String("dungeons", "data/dungeons.yaml", "Path to dungeons YAML file"),
		skills:   fs.String("skills", "data/skills.yaml", "Path to skills YAML file"),
		team:     fs.String("team", "data/team.yaml", "Path to team YAML file"),
	}
}
