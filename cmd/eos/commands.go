package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cronokirby/saferith"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/taurusgroup/multi-party-vote/pkg/config"
	"github.com/taurusgroup/multi-party-vote/pkg/election"
	"github.com/taurusgroup/multi-party-vote/pkg/math/sample"
	"github.com/taurusgroup/multi-party-vote/pkg/pool"
	"github.com/taurusgroup/multi-party-vote/pkg/store"
	"gopkg.in/urfave/cli.v1"
)

// workspace is what every command works with.
type workspace struct {
	cfg    *config.Election
	log    *logrus.Logger
	db     *store.Bolt
	pool   *pool.Pool
	runner *election.Runner
}

func (e *workspace) Close() {
	e.pool.TearDown()
	if e.db != nil {
		_ = e.db.Close()
	}
}

func loadConfig(c *cli.Context) (*config.Election, error) {
	path := c.GlobalString("config")
	if path == "" {
		return nil, nil
	}
	return config.Load(path)
}

func newLogger(c *cli.Context, cfg *config.Election) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetLevel(logrus.GetLevel())
	if cfg == nil {
		return log, nil
	}
	if !c.GlobalBool("debug") {
		level, err := cfg.Level()
		if err != nil {
			return nil, err
		}
		log.SetLevel(level)
	}
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}

// open opens the database, and loads the selected election unless create is set.
func open(c *cli.Context, create bool) (*workspace, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(c, cfg)
	if err != nil {
		return nil, err
	}
	path := c.GlobalString("database")
	workers := 0
	if cfg != nil {
		if cfg.Database != "" && !c.GlobalIsSet("database") {
			path = cfg.Database
		}
		workers = cfg.Workers
	}
	db, err := store.OpenBolt(path)
	if err != nil {
		return nil, err
	}
	env := &workspace{cfg: cfg, log: log, db: db, pool: pool.NewPool(workers)}
	if create {
		return env, nil
	}

	id, err := electionID(c, db)
	if err != nil {
		env.Close()
		return nil, err
	}
	e, err := election.Load(context.Background(), db, id)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.runner = env.newRunner(e)
	return env, nil
}

func (e *workspace) newRunner(el *election.Election) *election.Runner {
	r := election.NewRunner(el, e.db)
	r.Log = e.log
	r.Pool = e.pool
	r.Rand = pool.NewLockedReader(rand.Reader)
	return r
}

func electionID(c *cli.Context, db *store.Bolt) (uuid.UUID, error) {
	if s := c.GlobalString("election"); s != "" {
		return uuid.Parse(s)
	}
	ids, err := db.Elections(context.Background())
	if err != nil {
		return uuid.Nil, err
	}
	if len(ids) != 1 {
		return uuid.Nil, fmt.Errorf("database holds %d elections, select one with --election", len(ids))
	}
	return uuid.Parse(ids[0])
}

func genParams(c *cli.Context) error {
	pl := pool.NewPool(c.Int("workers"))
	defer pl.TearDown()
	p, err := sample.SafePrime(rand.Reader, c.Int("bits"), pl)
	if err != nil {
		return err
	}
	g := sample.SubgroupGenerator(rand.Reader, saferith.ModulusFromNat(p))
	params := struct {
		Group config.Group `toml:"group"`
	}{config.Group{P: p.Big().Text(16), G: g.Big().Text(16)}}
	return toml.NewEncoder(os.Stdout).Encode(params)
}

func checkGroup(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg == nil {
		return errors.New("checkgroup needs --config")
	}
	G, err := cfg.GroupParameters()
	if err != nil {
		return err
	}
	if err = G.ValidateSubgroup(); err != nil {
		return err
	}
	fmt.Printf("group ok: %d bit safe prime, %d bit blocks\n", G.P().BitLen(), G.BlockBits())
	return nil
}

func setup(c *cli.Context) error {
	env, err := open(c, true)
	if err != nil {
		return err
	}
	defer env.Close()
	if env.cfg == nil {
		return errors.New("setup needs --config")
	}
	e, err := env.cfg.Build()
	if err != nil {
		return err
	}
	r := env.newRunner(e)
	if err = r.SetupKeys(context.Background()); err != nil {
		return err
	}
	fingerprint, err := e.Fingerprint()
	if err != nil {
		return err
	}
	fmt.Printf("election %s\nfingerprint %s\n", e.ID, fingerprint)
	return nil
}

// parseAnswers reads "0;1,2": questions separated by semicolons, choices by commas.
func parseAnswers(s string) ([]*election.Answer, error) {
	var answers []*election.Answer
	for _, part := range strings.Split(s, ";") {
		a := &election.Answer{Choices: []int{}}
		for _, field := range strings.Split(part, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			choice, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("invalid choice %q: %w", field, err)
			}
			a.Choices = append(a.Choices, choice)
		}
		answers = append(answers, a)
	}
	return answers, nil
}

func cast(c *cli.Context) error {
	answers, err := parseAnswers(c.Args().First())
	if err != nil {
		return err
	}
	env, err := open(c, false)
	if err != nil {
		return err
	}
	defer env.Close()
	if _, err = env.runner.Cast(context.Background(), c.Int("voter"), answers); err != nil {
		return err
	}
	fmt.Printf("ballot cast by voter %d\n", c.Int("voter"))
	return nil
}

func forEachStage(c *cli.Context, f func(r *election.Runner, q, t int) error) error {
	env, err := open(c, false)
	if err != nil {
		return err
	}
	defer env.Close()
	e := env.runner.Election
	for q := range e.Questions {
		for t := range e.Trustees {
			if err = f(env.runner, q, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func mix(c *cli.Context) error {
	return forEachStage(c, func(r *election.Runner, q, t int) error {
		return r.RunMixStage(context.Background(), q, t)
	})
}

func prove(c *cli.Context) error {
	return forEachStage(c, func(r *election.Runner, q, t int) error {
		return r.ProveMixStage(context.Background(), q, t)
	})
}

func decrypt(c *cli.Context) error {
	env, err := open(c, false)
	if err != nil {
		return err
	}
	defer env.Close()
	for q := range env.runner.Election.Questions {
		if err = env.runner.DecryptQuestion(context.Background(), q); err != nil {
			return err
		}
	}
	return nil
}

func verify(c *cli.Context) error {
	env, err := open(c, false)
	if err != nil {
		return err
	}
	defer env.Close()
	if err = election.Verify(context.Background(), env.runner.Election); err != nil {
		return err
	}
	fmt.Println("election verified")
	return nil
}

func results(c *cli.Context) error {
	env, err := open(c, false)
	if err != nil {
		return err
	}
	defer env.Close()
	if err = env.runner.ReleaseResults(context.Background()); err != nil {
		return err
	}
	e := env.runner.Election
	for q, question := range e.Questions {
		fmt.Printf("%s\n", question.Prompt)
		for _, count := range e.Results[q].Count() {
			fmt.Printf("  %4d  %s\n", count.Count, question.Pretty(count.Answer))
		}
		if n := e.Results[q].Spoiled(); n > 0 {
			fmt.Printf("  %4d  (spoiled)\n", n)
		}
	}
	return nil
}

func blt(c *cli.Context) error {
	var withdrawn []int
	if s := c.String("withdrawn"); s != "" {
		for _, field := range strings.Split(s, ",") {
			choice, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return fmt.Errorf("invalid choice %q: %w", field, err)
			}
			withdrawn = append(withdrawn, choice)
		}
	}
	env, err := open(c, false)
	if err != nil {
		return err
	}
	defer env.Close()
	return election.WriteBLT(os.Stdout, env.runner.Election, c.Int("question"), c.Int("seats"), withdrawn)
}
