//	@title			RepCoach API
//	@version		1.0
//	@description	AI coaching for workout programs: onboarding chat, program generation and repair, exercise descriptions

//	@BasePath	/api/v0

//	@tag.name			coach
//	@tag.description	Conversations and program generation

//	@tag.name			exercises
//	@tag.description	Exercise descriptions

//	@tag.name			debug
//	@tag.description	Model request audit log

//	@tag.name			health
//	@tag.description	Operational endpoints for monitoring and health

package main

import (
	"fmt"
	"os"

	"github.com/repcoach/repcoach/cli"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
