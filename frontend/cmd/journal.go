package cmd

import (
	"fmt"
	"strconv"
	"strings"

	ishell "github.com/abiosoft/ishell"
	"github.com/common-nighthawk/go-figure"
	"github.com/inkwell-app/inkwell/backend/mood"
	"github.com/inkwell-app/inkwell/frontend/client"
	"github.com/inkwell-app/inkwell/lib/utils"
)

// guestCommands holds the commands available before an API token is stored.
var guestCommands []Command

// userCommands holds the commands available once an API token is stored.
var userCommands []Command

// shell is the interactive shell instance for this application.
var shell *ishell.Shell

// Command defines a user command in the shell: a Name, a short Desc, and the
// Func executed when the command is invoked.
type Command struct {
	Name string
	Desc string
	Func func(c *ishell.Context)
}

// InitJournalCmd initializes the shell and registers the commands for the
// guest and authenticated scenarios.
func InitJournalCmd() {

	shell = ishell.New()

	guestCommands = []Command{
		{
			Name: "token",
			Desc: "Store an API token for this machine",
			Func: func(c *ishell.Context) {
				c.Print("Paste API token: ")
				token := strings.TrimSpace(c.ReadLine())
				if token == "" {
					c.Println("Token cannot be empty.")
					return
				}

				if err := client.StoreToken(token); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Token stored, you are ready to go.")
				for _, command := range guestCommands {
					shell.DeleteCmd(command.Name)
				}
				addCommands(shell, userCommands)
			},
		},
	}

	userCommands = []Command{
		{
			Name: "streak",
			Desc: "Show your writing streak",
			Func: func(c *ishell.Context) {
				record, err := client.GetStreak()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Current streak:  %d days\n", record.CurrentStreak)
				c.Printf("Longest streak:  %d days\n", record.LongestStreak)
				c.Printf("Total entries:   %d\n", record.TotalEntries)
				c.Printf("This month:      %d entries (%s)\n", record.MonthlyCount, record.CurrentMonth)
			},
		},
		{
			Name: "mood",
			Desc: "Record today's mood score (0-10)",
			Func: func(c *ishell.Context) {
				var score int
				for {
					c.Print("Score (0-10): ")
					parsed, err := strconv.Atoi(strings.TrimSpace(c.ReadLine()))
					if err == nil && parsed >= 0 && parsed <= 10 {
						score = parsed
						break
					}
					c.Println("Score must be an integer between 0 and 10.")
				}

				c.Print("Emotion (optional): ")
				emotion := strings.TrimSpace(c.ReadLine())

				point, err := client.UpsertMood(mood.UpsertInput{Score: score, Emotion: emotion})
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Recorded %d for %s\n", point.Score, point.Day.Format("2006-01-02"))
			},
		},
		{
			Name: "range",
			Desc: "Show the last week of mood points",
			Func: func(c *ishell.Context) {
				result, err := client.GetMoodRange("", "")
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("%s .. %s\n", result.From, result.To)
				if len(result.Points) == 0 {
					c.Println("No mood points in this window.")
					return
				}
				for _, point := range result.Points {
					label := ""
					if point.Emotion != "" {
						label = "  (" + point.Emotion + ")"
					}
					c.Printf("%s  %2d%s\n", point.Day.Format("2006-01-02"), point.Score, label)
				}
			},
		},
		{
			Name: "recompute",
			Desc: "Recompute a day's mood point from its entry ratings",
			Func: func(c *ishell.Context) {
				c.Print("Day (YYYY-MM-DD): ")
				day := strings.TrimSpace(c.ReadLine())

				point, err := client.RecomputeDay(day)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				if point == nil || point.ID.IsZero() {
					c.Printf("No rated entries on %s, mood point cleared.\n", day)
					return
				}
				c.Printf("Recomputed %s to score %d\n", day, point.Score)
			},
		},
		{
			Name: "logout",
			Desc: "Forget the stored API token",
			Func: func(c *ishell.Context) {
				if err := client.ClearToken(); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Token removed.")
				for _, command := range userCommands {
					shell.DeleteCmd(command.Name)
				}
				addCommands(shell, guestCommands)
			},
		},
	}

	if client.HasToken() {
		addCommands(shell, userCommands)
	} else {
		addCommands(shell, guestCommands)
	}
}

// addCommands registers a set of commands on the shell.
func addCommands(shell *ishell.Shell, commands []Command) {
	for _, command := range commands {
		command := command
		shell.AddCmd(&ishell.Cmd{
			Name: command.Name,
			Help: command.Desc,
			Func: command.Func,
		})
	}
}

// Execute prints the banner and runs the interactive shell until exit.
func Execute() {
	figure.NewFigure("Inkwell", "", true).Print()
	fmt.Println()
	shell.Println("Type 'help' to see the available commands.")
	shell.Run()
}
