package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/sekolahmbg/mbg-client/core/attendance"
	"github.com/sekolahmbg/mbg-client/core/auth"
	"github.com/sekolahmbg/mbg-client/core/netmode"
	"github.com/sekolahmbg/mbg-client/core/offline"
	"github.com/sekolahmbg/mbg-client/core/report"
	"github.com/sekolahmbg/mbg-client/core/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	sessions   *session.Store
	resolver   *netmode.Resolver
	engine     *offline.Engine
	authSvc    *auth.Service
	attendance *attendance.Service
	reports    *report.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  login -username USERNAME - log in; the password will be prompted")
	fmt.Println("  logout - clear the current session")
	fmt.Println("  whoami - print the current session")
	fmt.Println("  mode [cloud|local] [-host HOST] - show or set the network mode")
	fmt.Println("  queue - list pending offline items")
	fmt.Println("  sync - drain the offline queue now")
	fmt.Println("  record -school ID -date YYYY-MM-DD -entries STUDENT:STATUS[,...] - record attendance")
	fmt.Println("  feedback -school ID -date YYYY-MM-DD -rating 1..5 [-comment TEXT] - report meal quality")
	fmt.Println("  emergency -school ID -category CATEGORY -description TEXT - report an incident")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	loginUname := loginCmd.String("username", "", "The username. The password will be prompted next.")

	modeCmd := flag.NewFlagSet("mode", flag.ExitOnError)
	modeHost := modeCmd.String("host", "", "The local school server host/IP (LOCAL mode).")

	recordCmd := flag.NewFlagSet("record", flag.ExitOnError)
	recordSchool := recordCmd.String("school", "", "The school id.")
	recordDate := recordCmd.String("date", "", "The attendance date (YYYY-MM-DD).")
	recordEntries := recordCmd.String("entries", "", "Comma-separated STUDENT:STATUS pairs.")

	feedbackCmd := flag.NewFlagSet("feedback", flag.ExitOnError)
	feedbackSchool := feedbackCmd.String("school", "", "The school id.")
	feedbackDate := feedbackCmd.String("date", "", "The meal date (YYYY-MM-DD).")
	feedbackRating := feedbackCmd.Int("rating", 0, "The meal rating, 1 to 5.")
	feedbackComment := feedbackCmd.String("comment", "", "Optional free-text comment.")

	emergencyCmd := flag.NewFlagSet("emergency", flag.ExitOnError)
	emergencySchool := emergencyCmd.String("school", "", "The school id.")
	emergencyCategory := emergencyCmd.String("category", "", "The incident category.")
	emergencyDesc := emergencyCmd.String("description", "", "What happened.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginUname, string(pwd))
	case "logout":
		cli.authSvc.Logout(ctx)
		fmt.Println("logged out")
		return nil
	case "whoami":
		return cli.whoami()
	case "mode":
		if len(args) == 2 {
			fmt.Println(cli.resolver.Mode())
			return nil
		}
		if err := modeCmd.Parse(args[3:]); err != nil {
			return err
		}
		return cli.setMode(args[2], *modeHost)
	case "queue":
		return cli.listQueue()
	case "sync":
		if cli.engine.Sync(ctx) {
			fmt.Println("queue drained")
			return nil
		}
		fmt.Println("some items could not be synced; they remain queued")
		return nil
	case "record":
		if err := recordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *recordSchool == "" || *recordDate == "" || *recordEntries == "" {
			recordCmd.Usage()
			return errHelp
		}
		return cli.record(ctx, *recordSchool, *recordDate, *recordEntries)
	case "feedback":
		if err := feedbackCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *feedbackSchool == "" || *feedbackDate == "" || *feedbackRating == 0 {
			feedbackCmd.Usage()
			return errHelp
		}
		queued, err := cli.reports.SubmitFeedback(ctx, report.Feedback{
			SchoolID: *feedbackSchool,
			Date:     *feedbackDate,
			Rating:   *feedbackRating,
			Comment:  *feedbackComment,
		})
		return reportOutcome("feedback", queued, err)
	case "emergency":
		if err := emergencyCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *emergencySchool == "" || *emergencyCategory == "" || *emergencyDesc == "" {
			emergencyCmd.Usage()
			return errHelp
		}
		queued, err := cli.reports.SubmitEmergency(ctx, report.Emergency{
			SchoolID:    *emergencySchool,
			Category:    *emergencyCategory,
			Description: *emergencyDesc,
		})
		return reportOutcome("emergency report", queued, err)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) login(ctx context.Context, uname, pwd string) error {
	sess, err := cli.authSvc.Login(ctx, uname, pwd)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", sess.Username, sess.Role)
	return nil
}

func (cli *commandLine) whoami() error {
	sess := cli.sessions.Get()
	if sess == nil {
		fmt.Println("not logged in")
		return nil
	}
	fmt.Printf("%s (%s), status=%s\n", sess.Username, sess.Role, sess.AccountStatus)
	return nil
}

func (cli *commandLine) setMode(mode, host string) error {
	if host != "" {
		cli.resolver.SetLocalHost(host)
	}
	m := netmode.Mode(strings.ToUpper(mode))
	if err := cli.resolver.SetMode(m, cli.sessions.Get().RoleOrUnknown()); err != nil {
		return err
	}
	fmt.Println(cli.resolver.Mode())
	return nil
}

func (cli *commandLine) listQueue() error {
	items := cli.engine.Queue().All()
	if len(items) == 0 {
		fmt.Println("queue is empty")
		return nil
	}
	for _, item := range items {
		fmt.Printf("%s  type=%s tries=%d createdAt=%s payload=%s\n",
			item.ID, item.Type, item.Tries, item.CreatedAt.Format("2006-01-02 15:04:05"),
			string(item.Payload))
	}
	return nil
}

func (cli *commandLine) record(ctx context.Context, school, date, rawEntries string) error {
	entries, err := parseEntries(rawEntries)
	if err != nil {
		return err
	}
	queued, err := cli.attendance.Record(ctx, attendance.Record{
		SchoolID: school,
		Date:     date,
		Entries:  entries,
	})
	if err != nil {
		return err
	}
	if queued {
		fmt.Println("offline or submit failed: attendance queued for sync")
		return nil
	}
	fmt.Println("attendance recorded")
	return nil
}

func reportOutcome(what string, queued bool, err error) error {
	if err != nil {
		return err
	}
	if queued {
		fmt.Printf("offline or submit failed: %s queued for sync\n", what)
		return nil
	}
	fmt.Printf("%s submitted\n", what)
	return nil
}

// parseEntries parses "student1:hadir,student2:sakit" pairs.
func parseEntries(raw string) ([]attendance.Entry, error) {
	parts := strings.Split(raw, ",")
	entries := make([]attendance.Entry, 0, len(parts))
	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("malformed entry %q, want STUDENT:STATUS", part)
		}
		status := attendance.Status(strings.ToLower(kv[1]))
		if !status.Valid() {
			return nil, fmt.Errorf("unknown status %q in entry %q", kv[1], part)
		}
		entries = append(entries, attendance.Entry{StudentID: kv[0], Status: status})
	}
	return entries, nil
}
