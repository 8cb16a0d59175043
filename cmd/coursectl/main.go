// Command coursectl is the operator tool: bulk course import, a one-off outbox
// relay pass and admin password hashing.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/coursegate/internal/catalog"
	"github.com/mind-engage/coursegate/internal/config"
	"github.com/mind-engage/coursegate/internal/db"
	"github.com/mind-engage/coursegate/internal/logger"
	"github.com/mind-engage/coursegate/internal/progression"
	"github.com/mind-engage/coursegate/internal/questionpool"
	syncx "github.com/mind-engage/coursegate/internal/sync"
)

const usage = `usage:
  coursectl import <bundle.json>    import a course and its question banks
  coursectl relay                   publish pending outbox events once
  coursectl hash-password <secret>  print a bcrypt hash for ADMIN_PASS_HASH`

var operator = progression.Actor{ID: "coursectl", Admin: true}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "coursectl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("coursectl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cost := fs.Int("cost", 12, "bcrypt cost for hash-password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New(usage)
	}

	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "hash-password":
		if len(rest) != 1 {
			return errors.New(usage)
		}
		h, err := bcrypt.GenerateFromPassword([]byte(rest[0]), *cost)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(h))
		return nil
	case "import":
		if len(rest) != 1 {
			return errors.New(usage)
		}
		return withEngine(ctx, func(e *engine) error { return e.importBundle(ctx, rest[0], out) })
	case "relay":
		return withEngine(ctx, func(e *engine) error { return e.relayOnce(ctx, out) })
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

type engine struct {
	coord *progression.Coordinator
	relay func(ctx context.Context) (int, error)
}

func withEngine(ctx context.Context, fn func(*engine) error) error {
	cfg := config.FromEnv()
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer lg.Sync()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	events := syncx.NewEventRepo(cfg.Events.SiteID)
	var pub syncx.Publisher = syncx.NewLogPublisher(lg)
	if cfg.Events.RedisAddr != "" {
		rp, err := syncx.NewRedisPublisher(ctx, lg, cfg.Events.RedisAddr, cfg.Events.RedisChannel)
		if err != nil {
			return err
		}
		pub = rp
	}
	defer pub.Close()

	return fn(&engine{
		coord: progression.New(progression.Deps{DB: dbh, Config: cfg, Log: lg, Events: events}),
		relay: syncx.NewRelay(dbh, events, pub, lg, cfg.Events.RelayBatch).RunOnce,
	})
}

// bundle is a course tree plus its banks. Unit quiz banks name their unit by
// 1-based sequence since unit ids are assigned on import.
type bundle struct {
	Course catalog.CourseDef `json:"course"`
	Banks  []struct {
		questionpool.Bank
		UnitSequence int `json:"unit_sequence,omitempty"`
		Questions    []struct {
			questionpool.Question
			Active *bool `json:"active"`
		} `json:"questions"`
	} `json:"banks"`
}

func (e *engine) importBundle(ctx context.Context, path string, out io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	def, err := e.coord.ImportCourse(ctx, operator, b.Course)
	if err != nil {
		return fmt.Errorf("course: %w", err)
	}
	fmt.Fprintf(out, "course %s %q: %d units\n", def.ID, def.Title, len(def.Units))

	for i, bk := range b.Banks {
		bank := bk.Bank
		bank.CourseID = def.ID
		if bk.UnitSequence > 0 {
			if bk.UnitSequence > len(def.Units) {
				return fmt.Errorf("bank %d: unit_sequence %d out of range", i+1, bk.UnitSequence)
			}
			bank.UnitID = def.Units[bk.UnitSequence-1].ID
		}
		qs := make([]questionpool.Question, len(bk.Questions))
		for j, q := range bk.Questions {
			qs[j] = q.Question
			qs[j].Active = q.Active == nil || *q.Active
		}
		stored, storedQs, err := e.coord.ImportBank(ctx, operator, bank, qs)
		if err != nil {
			return fmt.Errorf("bank %d: %w", i+1, err)
		}
		fmt.Fprintf(out, "bank %s %s%s: %d questions\n", stored.ID, stored.Kind, formSuffix(stored.Form), len(storedQs))
	}
	return nil
}

func formSuffix(form string) string {
	if form == "" {
		return ""
	}
	return " form " + form
}

func (e *engine) relayOnce(ctx context.Context, out io.Writer) error {
	n, err := e.relay(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "published %d events\n", n)
	return nil
}
