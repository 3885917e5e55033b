// Command dtrack is the operator CLI for the evidence custody tracker. It is
// the external collaborator for the embedded core: bootstrap, account
// management, custody transitions, and the admin-only bulk export.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/dial-lab/dtrack/internal/config"
	pkgcrypto "github.com/dial-lab/dtrack/internal/crypto"
	"github.com/dial-lab/dtrack/internal/errs"
	"github.com/dial-lab/dtrack/internal/limiter"
	"github.com/dial-lab/dtrack/internal/migrate"
	"github.com/dial-lab/dtrack/internal/model"
	"github.com/dial-lab/dtrack/internal/repository/postgres"
	"github.com/dial-lab/dtrack/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- token store ----

type tokenFile struct {
	Token string `json:"token"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "dtrack")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dtrack")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	b, err := json.Marshal(tokenFile{Token: tok})
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), b, 0o600)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", errors.New("not logged in")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil || tf.Token == "" {
		return "", errors.New("not logged in")
	}
	return tf.Token, nil
}

// ---- wiring ----

type app struct {
	db     *postgres.DB
	auth   service.AuthService
	keep   service.CustodyService
	chain  service.ChainService
	opts   service.OptionService
	audit  *service.Auditor
	logger *zap.Logger
}

func open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	accountRepo := postgres.NewAccountRepo(db)
	custodyRepo := postgres.NewCustodyRepo(db)
	chainRepo := postgres.NewChainRepo(db)
	auditRepo := postgres.NewAuditRepo(db)
	optionRepo := postgres.NewOptionRepo(db)

	audit := service.NewAuditor(auditRepo, logger)
	lim := limiter.NewPGWithQuerier(db.Pool, 15*time.Minute, 5, 15*time.Minute)

	return &app{
		db:     db,
		auth:   service.NewAuthService(accountRepo, lim, audit, []byte(cfg.SessionKey), cfg.SessionTTL),
		keep:   service.NewCustodyService(custodyRepo, accountRepo, audit),
		chain:  service.NewChainService(chainRepo, audit),
		opts:   service.NewOptionService(optionRepo, audit),
		audit:  audit,
		logger: logger,
	}, nil
}

// session loads the saved token and reconstructs the caller's session.
func (a *app) session() (model.Session, error) {
	tok, err := loadToken()
	if err != nil {
		return model.Session{}, err
	}
	return a.auth.ParseSession(tok)
}

// seedAdmin bootstraps the default admin account on first run.
func seedAdmin(ctx context.Context, db *postgres.DB, password string) error {
	repo := postgres.NewAccountRepo(db)
	if _, err := repo.GetByUsername(ctx, "admin"); err == nil {
		return nil
	} else if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	cred, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return err
	}
	return repo.Create(ctx, &model.Account{
		ID:         id,
		Username:   "admin",
		Credential: cred,
		Role:       model.RoleAdmin,
		Approved:   true,
	})
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: dtrack <command> [flags]

commands:
  version
  migrate                                          apply schema migrations
  seed                                             bootstrap default admin
  register        -u <team> -p <password>
  login           -u <name> -p <password>          (saves session token)
  whoami                                           show the saved session
  approve         -u <team> [-revoke]
  create-user     -u <name> -p <password> [-role admin|user]
  create-subuser  -u <name> -p <password> [-parent <team>]
  reset-password  -u <name> -p <newpassword>
  add-hdd         -sn <serial> [-unit <unit>] [-space <cap>] [-team <team>]
  assign          -sn <serial> -team <team>
  assign-subuser  -sn <serial> -sub <subuser> [-notes <text>]
  enter-data      -sn <serial> -premise <name> -details <text> [-search <date>] [-seized <date>]
  seal            -sn <serial> [-notes <text>]
  extract         -sn <serial> -vendor <name> -out <serial> [-copies a,b,c] [-start <date>] [-received <date>] [-assign <team>]
  analyze         -out <serial> -analyst <name> [-date <date>] [-notes <text>]
  list            [-status <status>] [-search <text>]
  export          [-format csv|json]
  options         -type unit|vendor [-add <name>] [-remove <name>]
  logs            [-n <count>]
`)
	os.Exit(2)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func parseDate(fs *flag.FlagSet, name string) *time.Time {
	f := fs.Lookup(name)
	if f == nil || f.Value.String() == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", f.Value.String())
	if err != nil {
		fail(fmt.Errorf("bad -%s (want YYYY-MM-DD): %w", name, err))
	}
	return &t
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	if cmd == "version" {
		fmt.Printf("dtrack %s (%s)\n", version, buildDate)
		return
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cmd == "migrate" {
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			fail(err)
		}
		fmt.Println("ok")
		return
	}

	a, err := open(ctx, cfg, logger)
	if err != nil {
		fail(err)
	}
	defer a.db.Close()

	switch cmd {

	case "seed":
		if err := seedAdmin(ctx, a.db, cfg.AdminPassword); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "register":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		u := fs.String("u", "", "team code")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if err := a.auth.Register(ctx, *u, *p); err != nil {
			fail(err)
		}
		fmt.Println("registered; await admin approval")

	case "login":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		tok, sess, err := a.auth.Login(ctx, *u, *p)
		if err != nil {
			fail(err)
		}
		if err := saveToken(tok); err != nil {
			fail(err)
		}
		fmt.Printf("logged in as %s (%s)\n", sess.Username, sess.Role)

	case "approve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		u := fs.String("u", "", "team code")
		revoke := fs.Bool("revoke", false, "disapprove instead")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		if err := a.auth.SetApproval(ctx, sess, *u, !*revoke); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "create-user":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		role := fs.String("role", "user", "user|admin")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		if err := a.auth.CreateUser(ctx, sess, *u, *p, model.Role(*role)); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "create-subuser":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		u := fs.String("u", "", "subuser name")
		p := fs.String("p", "", "password")
		parent := fs.String("parent", "", "parent team (admin only)")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		sub, err := a.auth.CreateSubuser(ctx, sess, *u, *p, *parent)
		if err != nil {
			fail(err)
		}
		fmt.Printf("created %s (expires %s)\n", sub.Username, sub.ValidTill.Format("2006-01-02"))

	case "reset-password":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "new password")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		if err := a.auth.ResetPassword(ctx, sess, *u, *p); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "add-hdd":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sn := fs.String("sn", "", "serial number")
		unit := fs.String("unit", "", "unit")
		space := fs.String("space", "", "capacity")
		team := fs.String("team", "", "holder (optional)")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		if *team != "" {
			if busy, err := a.keep.HolderBusy(ctx, sess, *team); err == nil && busy {
				fmt.Fprintf(os.Stderr, "warning: %s already holds an issued HDD\n", *team)
			}
		}
		rec, err := a.keep.Intake(ctx, sess, model.CustodyRecord{
			SerialNo:  *sn,
			Unit:      *unit,
			UnitSpace: *space,
		}, *team)
		if err != nil {
			fail(err)
		}
		fmt.Printf("added %s (%s)\n", rec.SerialNo, rec.Status)

	case "assign":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sn := fs.String("sn", "", "serial number")
		team := fs.String("team", "", "holder")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		if busy, err := a.keep.HolderBusy(ctx, sess, *team); err == nil && busy {
			fmt.Fprintf(os.Stderr, "warning: %s already holds an issued HDD\n", *team)
		}
		if err := a.keep.AssignTeam(ctx, sess, *sn, *team); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "assign-subuser":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sn := fs.String("sn", "", "serial number")
		sub := fs.String("sub", "", "subuser")
		notes := fs.String("notes", "", "assignment notes")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		if err := a.keep.AssignSubuser(ctx, sess, *sn, *sub, *notes); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "enter-data":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sn := fs.String("sn", "", "serial number")
		premise := fs.String("premise", "", "premise name")
		details := fs.String("details", "", "data details")
		fs.String("search", "", "date of search (YYYY-MM-DD)")
		fs.String("seized", "", "date seized (YYYY-MM-DD)")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		entry := model.DataEntry{
			PremiseName: *premise,
			DateSearch:  parseDate(fs, "search"),
			DateSeized:  parseDate(fs, "seized"),
			Details:     *details,
		}
		if err := a.keep.EnterData(ctx, sess, *sn, entry); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "seal":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sn := fs.String("sn", "", "serial number")
		notes := fs.String("notes", "", "sealing notes")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		if err := a.keep.Seal(ctx, sess, *sn, *notes); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		sn := fs.String("sn", "", "sealed serial number")
		vendor := fs.String("vendor", "", "extraction vendor")
		out := fs.String("out", "", "extracted-data serial")
		copies := fs.String("copies", "", "working copy serials, comma separated")
		fs.String("start", "", "extraction start date")
		fs.String("received", "", "receiving date")
		assign := fs.String("assign", "", "assign to team (optional)")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		var wc []string
		if *copies != "" {
			for _, c := range strings.Split(*copies, ",") {
				if c = strings.TrimSpace(c); c != "" {
					wc = append(wc, c)
				}
			}
		}
		rec, err := a.chain.SendToExtraction(ctx, sess, model.ExtractionInput{
			OriginalSerial:      *sn,
			Vendor:              *vendor,
			ExtractedSerial:     *out,
			WorkingCopies:       wc,
			DateExtractionStart: parseDate(fs, "start"),
			DateReceiving:       parseDate(fs, "received"),
			AssignedUser:        *assign,
		})
		if err != nil {
			fail(err)
		}
		fmt.Printf("sent %s to %s, extracted serial %s\n", rec.OriginalSerial, rec.ExtractedBy, rec.ExtractedSerial)

	case "analyze":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "extracted-data serial")
		analyst := fs.String("analyst", "", "analyst name")
		fs.String("date", "", "disbursement date")
		notes := fs.String("notes", "", "analysis instructions")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		rec, err := a.chain.SendToAnalysis(ctx, sess, model.AnalysisInput{
			ExtractedSerial: *out,
			AnalystName:     *analyst,
			DateDisburse:    parseDate(fs, "date"),
			AnalysisNotes:   *notes,
		})
		if err != nil {
			fail(err)
		}
		fmt.Printf("disbursed %s to %s (%s)\n", rec.ExtractedSerial, rec.AnalystName, rec.Status)

	case "list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		status := fs.String("status", "", "filter by status")
		search := fs.String("search", "", "substring search")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		recs, err := a.keep.List(ctx, sess, model.CustodyFilter{
			Status: model.Status(*status),
			Search: *search,
		})
		if err != nil {
			fail(err)
		}
		for _, r := range recs {
			holder := r.TeamCode
			if holder == "" {
				holder = "-"
			}
			fmt.Printf("%-20s %-14s %-12s %s\n", r.SerialNo, r.Status, holder, r.UnitSpace)
		}

	case "export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		format := fs.String("format", "csv", "csv|json")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		recs, err := a.keep.ExportAll(ctx, sess)
		if err != nil {
			fail(err)
		}
		switch *format {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(recs); err != nil {
				fail(err)
			}
		case "csv":
			if err := writeCSV(os.Stdout, recs); err != nil {
				fail(err)
			}
		default:
			fail(fmt.Errorf("unknown format %q", *format))
		}

	case "options":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		typ := fs.String("type", "", "unit|vendor")
		add := fs.String("add", "", "name to add")
		remove := fs.String("remove", "", "name to remove")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		switch {
		case *add != "":
			if err := a.opts.Add(ctx, sess, *typ, *add); err != nil {
				fail(err)
			}
		case *remove != "":
			if err := a.opts.Remove(ctx, sess, *typ, *remove); err != nil {
				fail(err)
			}
		}
		names, err := a.opts.List(ctx, sess, *typ)
		if err != nil {
			fail(err)
		}
		for _, n := range names {
			fmt.Println(n)
		}

	case "logs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		n := fs.Int("n", 50, "number of rows")
		_ = fs.Parse(args)
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		entries, err := a.audit.Recent(ctx, sess, *n)
		if err != nil {
			fail(err)
		}
		for _, e := range entries {
			fmt.Printf("%s  %-16s %s\n", e.TS.Format(time.RFC3339), e.Username, e.Action)
		}

	case "whoami":
		sess, err := a.session()
		if err != nil {
			fail(err)
		}
		if sess.Parent != "" {
			fmt.Printf("%s (%s, team %s)\n", sess.Username, sess.Role, sess.Parent)
		} else {
			fmt.Printf("%s (%s)\n", sess.Username, sess.Role)
		}

	default:
		usage()
	}
}

// writeCSV renders all columns of all records.
func writeCSV(w *os.File, recs []model.CustodyRecord) error {
	cw := csv.NewWriter(w)
	header := []string{
		"serial_no", "unit", "unit_space", "team_code", "assigned_subuser",
		"premise_name", "date_search", "date_seized", "data_details",
		"status", "created_by", "created_on", "barcode_value",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	ds := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	}
	for _, r := range recs {
		row := []string{
			r.SerialNo, r.Unit, r.UnitSpace, r.TeamCode, r.AssignedSubuser,
			r.PremiseName, ds(r.DateSearch), ds(r.DateSeized), r.DataDetails,
			string(r.Status), r.CreatedBy, r.CreatedOn.Format(time.RFC3339), r.BarcodeValue,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
