// Command eos runs a verifiable election: key generation, casting, mixing, decryption and
// verification, with every record kept in a bbolt database.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"
)

func main() {
	app := cli.NewApp()
	app.Name = "eos"
	app.Usage = "Runs and verifies mixnet elections"
	app.Version = "0.1"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "election definition (TOML)",
		},
		cli.StringFlag{
			Name:  "database, d",
			Value: "eos.db",
			Usage: "bbolt database holding the election records",
		},
		cli.StringFlag{
			Name:  "election, e",
			Usage: "election ID, may be omitted when the database holds a single election",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "log at debug level",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "genparams",
			Usage:  "Generate new safe prime group parameters",
			Action: genParams,
			Flags: []cli.Flag{
				cli.IntFlag{Name: "bits", Value: 2048, Usage: "size of p"},
				cli.IntFlag{Name: "workers", Usage: "worker count, 0 uses every CPU"},
			},
		},
		{
			Name:   "checkgroup",
			Usage:  "Audit the group parameters of the configuration",
			Action: checkGroup,
		},
		{
			Name:   "setup",
			Usage:  "Create the election from its configuration and generate the trustee keys",
			Action: setup,
		},
		{
			Name:      "cast",
			Usage:     "Encrypt and cast a ballot",
			ArgsUsage: "answers, e.g. \"0;1,2\" for {0} to question 0 and {1, 2} to question 1",
			Action:    cast,
			Flags: []cli.Flag{
				cli.IntFlag{Name: "voter", Usage: "voter index"},
			},
		},
		{
			Name:   "mix",
			Usage:  "Run every pending mix stage",
			Action: mix,
		},
		{
			Name:   "prove",
			Usage:  "Prove every mixed stage",
			Action: prove,
		},
		{
			Name:   "decrypt",
			Usage:  "Decrypt every proven question",
			Action: decrypt,
		},
		{
			Name:   "verify",
			Usage:  "Verify the published election",
			Action: verify,
		},
		{
			Name:   "results",
			Usage:  "Release and print the results",
			Action: results,
		},
		{
			Name:   "blt",
			Usage:  "Export the result of a question as a BLT ballot list",
			Action: blt,
			Flags: []cli.Flag{
				cli.IntFlag{Name: "question", Usage: "question index"},
				cli.IntFlag{Name: "seats", Value: 1, Usage: "number of seats"},
				cli.StringFlag{Name: "withdrawn", Usage: "comma separated withdrawn choices"},
			},
		},
	}
	app.Before = func(c *cli.Context) error {
		if c.GlobalBool("debug") {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
