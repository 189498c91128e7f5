package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kgcollins/parishport/internal/auth"
	"github.com/kgcollins/parishport/internal/config"
	"github.com/kgcollins/parishport/internal/feedback"
	"github.com/kgcollins/parishport/internal/gateway"
	"github.com/kgcollins/parishport/internal/household"
	"github.com/kgcollins/parishport/internal/logging"
	"github.com/kgcollins/parishport/internal/member"
	"github.com/kgcollins/parishport/internal/model"
	"github.com/kgcollins/parishport/internal/session"
	"github.com/kgcollins/parishport/internal/statedb"
)

const usage = `parishport - household self-service portal client

Usage:
  parishport <command> [flags]

Commands:
  status                          show session state
  register                        register a new household
  login                           log in
  logout                          log out
  household                       show the household record
  household-update                update household details
  members                         list members
  member-add                      add a member (with optional certificates)
  member-update                   edit a member (with optional certificates)
  member-delete                   delete a member
  certs                           list a member's certificates
  cert-upload                     upload one certificate
  cert-delete                     delete one certificate
  cert-download                   download one certificate
  reset-request                   request a password reset email
  reset-complete                  complete a password reset
`

// app bundles the wired portal components for one CLI invocation.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	auth    *auth.Controller
	cache   *household.Cache
	members *member.Controller
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger := logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	db, err := statedb.Open(cfg.StatePath)
	if err != nil {
		slog.Error("open state db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	sessions := session.NewStore(db, cfg.StateKey, logging.For(logger, "session"))
	gw := gateway.NewClient(cfg.PortalURL, cfg.Nonce, sessions, logging.For(logger, "gateway"))
	cache := household.NewCache(gw, sessions, logging.For(logger, "household"))
	authCtrl := auth.NewController(gw, sessions, cache, logging.For(logger, "auth"))
	memberCtrl := member.NewController(gw, cache, sessions, logging.For(logger, "member"))

	gw.SetUnauthorizedHook(authCtrl.ForceUnauthenticated)
	authCtrl.SetLogoutHook(memberCtrl.ResetEditState)

	a := &app{cfg: cfg, logger: logger, auth: authCtrl, cache: cache, members: memberCtrl}

	ctx := context.Background()
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		feedback.NewReporter(os.Stderr, os.Args[1]).Error(err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	out := feedback.NewReporter(os.Stdout, command)

	switch command {
	case "status":
		if err := a.auth.CheckAuthenticationStatus(ctx); err != nil {
			a.logger.Warn("startup household load", "error", err)
		}
		out.Success("session " + a.auth.State().String())
		if h, ok := a.cache.Current(); ok {
			out.Success(fmt.Sprintf("household %q with %d member(s)", h.Name, len(h.Members)))
		}
		return nil

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		name := fs.String("name", "", "household name")
		email := fs.String("email", "", "primary email")
		password := fs.String("password", "", "password")
		confirm := fs.String("confirm", "", "password confirmation")
		phone := fs.String("phone", "", "primary phone")
		terms := fs.Bool("accept-terms", false, "accept the terms and privacy policy")
		fs.Parse(args)

		err := a.auth.Register(ctx, auth.RegisterInput{
			HouseholdName:   *name,
			Email:           *email,
			Password:        *password,
			PasswordConfirm: *confirm,
			Phone:           *phone,
			TermsAccepted:   *terms,
		})
		if err != nil {
			return err
		}
		out.Success("Registration successful! Welcome!")
		return nil

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		fs.Parse(args)

		if err := a.auth.Login(ctx, *email, *password); err != nil {
			return err
		}
		out.Success("Login successful! Loading your information...")
		return nil

	case "logout":
		a.auth.Logout(ctx)
		out.Success("Logged out")
		return nil

	case "household":
		if err := a.startAuthenticated(ctx); err != nil {
			return err
		}
		h, ok := a.cache.Current()
		if !ok {
			return model.ErrNoSession
		}
		printHousehold(h)
		return nil

	case "household-update":
		fs := flag.NewFlagSet("household-update", flag.ExitOnError)
		name := fs.String("name", "", "household name")
		address := fs.String("address", "", "street address")
		city := fs.String("city", "", "city")
		province := fs.String("province", "", "province/state")
		postal := fs.String("postal-code", "", "postal code")
		phone := fs.String("phone", "", "phone")
		email := fs.String("email", "", "email")
		fs.Parse(args)

		if err := a.startAuthenticated(ctx); err != nil {
			return err
		}
		h, err := a.cache.Update(ctx, gateway.HouseholdUpdate{
			Name:       *name,
			Address:    *address,
			City:       *city,
			Province:   *province,
			PostalCode: *postal,
			Phone:      *phone,
			Email:      *email,
		})
		if err != nil {
			return err
		}
		out.Success(fmt.Sprintf("Household information updated successfully! (%s)", h.Name))
		return nil

	case "members":
		if err := a.startAuthenticated(ctx); err != nil {
			return err
		}
		members, err := a.members.List(ctx)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			out.Success("No members added yet.")
			return nil
		}
		for _, m := range members {
			printMember(m)
		}
		return nil

	case "member-add", "member-update":
		return a.saveMember(ctx, command, args, out)

	case "member-delete":
		fs := flag.NewFlagSet("member-delete", flag.ExitOnError)
		id := fs.Int64("id", 0, "member id")
		fs.Parse(args)

		if err := a.startAuthenticated(ctx); err != nil {
			return err
		}
		if err := a.members.Delete(ctx, *id); err != nil {
			return err
		}
		out.Success("Family member deleted successfully!")
		return nil

	case "certs":
		fs := flag.NewFlagSet("certs", flag.ExitOnError)
		id := fs.Int64("member", 0, "member id")
		fs.Parse(args)

		if err := a.startAuthenticated(ctx); err != nil {
			return err
		}
		certs, err := a.members.Certificates(ctx, *id)
		if err != nil {
			return err
		}
		if len(certs) == 0 {
			out.Success("No certificates uploaded.")
			return nil
		}
		for _, t := range model.SacramentTypes {
			if info, ok := certs[t]; ok {
				fmt.Printf("%-16s %s\n", t, info.FileName)
			}
		}
		return nil

	case "cert-upload":
		fs := flag.NewFlagSet("cert-upload", flag.ExitOnError)
		id := fs.Int64("member", 0, "member id")
		certType := fs.String("type", "", "baptism|first_communion|confirmation")
		file := fs.String("file", "", "certificate file")
		fs.Parse(args)

		if err := a.startAuthenticated(ctx); err != nil {
			return err
		}
		content, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("read certificate file: %w", err)
		}
		if _, err := a.members.UploadCertificate(ctx, *id, model.SacramentType(*certType), filepath.Base(*file), content); err != nil {
			return err
		}
		out.Success("Certificate uploaded successfully!")
		return nil

	case "cert-delete":
		fs := flag.NewFlagSet("cert-delete", flag.ExitOnError)
		id := fs.Int64("member", 0, "member id")
		certType := fs.String("type", "", "baptism|first_communion|confirmation")
		fs.Parse(args)

		if err := a.startAuthenticated(ctx); err != nil {
			return err
		}
		if err := a.members.DeleteCertificate(ctx, *id, model.SacramentType(*certType)); err != nil {
			return err
		}
		out.Success("Certificate removed successfully!")
		return nil

	case "cert-download":
		fs := flag.NewFlagSet("cert-download", flag.ExitOnError)
		id := fs.Int64("member", 0, "member id")
		certType := fs.String("type", "", "baptism|first_communion|confirmation")
		dir := fs.String("dir", ".", "destination directory")
		fs.Parse(args)

		if err := a.startAuthenticated(ctx); err != nil {
			return err
		}
		name, data, err := a.members.DownloadCertificate(ctx, *id, model.SacramentType(*certType))
		if err != nil {
			return err
		}
		dest := filepath.Join(*dir, filepath.Base(name))
		if err := os.WriteFile(dest, data, 0600); err != nil {
			return fmt.Errorf("write certificate: %w", err)
		}
		out.Success("Saved " + dest)
		return nil

	case "reset-request":
		fs := flag.NewFlagSet("reset-request", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		resetURL := fs.String("reset-url", "", "page the emailed link should point at")
		fs.Parse(args)

		msg, err := a.auth.RequestReset(ctx, *email, *resetURL)
		if err != nil {
			return err
		}
		out.Success(msg)
		return nil

	case "reset-complete":
		fs := flag.NewFlagSet("reset-complete", flag.ExitOnError)
		token := fs.String("token", "", "reset token from the email link")
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "new password")
		confirm := fs.String("confirm", "", "new password confirmation")
		fs.Parse(args)

		msg, err := a.auth.CompleteReset(ctx, *token, *email, *password, *confirm)
		if err != nil {
			return err
		}
		out.Success(msg + " You can now login with your new password.")
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// startAuthenticated runs the startup auth check and fails fast when no
// session is held.
func (a *app) startAuthenticated(ctx context.Context) error {
	if err := a.auth.CheckAuthenticationStatus(ctx); err != nil {
		return err
	}
	if a.auth.State() != auth.Authenticated {
		return model.ErrNoSession
	}
	return nil
}

func (a *app) saveMember(ctx context.Context, command string, args []string, out *feedback.Reporter) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	id := fs.Int64("id", 0, "member id (member-update only)")
	first := fs.String("first-name", "", "first name")
	last := fs.String("last-name", "", "last name")
	email := fs.String("email", "", "email")
	phone := fs.String("phone", "", "phone")
	occupation := fs.String("occupation", "", "occupation")
	skills := fs.String("skills", "", "skills")

	baptised := fs.Bool("baptised", false, "baptised")
	baptismDate := fs.String("baptism-date", "", "baptism date (yyyy-mm-dd)")
	baptismParish := fs.String("baptism-parish", "", "baptism parish")
	communion := fs.Bool("first-communion", false, "received first communion")
	communionDate := fs.String("first-communion-date", "", "first communion date")
	communionParish := fs.String("first-communion-parish", "", "first communion parish")
	confirmed := fs.Bool("confirmed", false, "confirmed")
	confirmationDate := fs.String("confirmation-date", "", "confirmation date")
	confirmationParish := fs.String("confirmation-parish", "", "confirmation parish")

	baptismCert := fs.String("baptism-cert", "", "baptism certificate file")
	communionCert := fs.String("first-communion-cert", "", "first communion certificate file")
	confirmationCert := fs.String("confirmation-cert", "", "confirmation certificate file")
	fs.Parse(args)

	if err := a.startAuthenticated(ctx); err != nil {
		return err
	}

	if command == "member-update" {
		if _, err := a.members.BeginEdit(ctx, *id); err != nil {
			return err
		}
	}

	certs, err := loadCertFiles(map[model.SacramentType]string{
		model.Baptism:        *baptismCert,
		model.FirstCommunion: *communionCert,
		model.Confirmation:   *confirmationCert,
	})
	if err != nil {
		return err
	}

	res, err := a.members.Save(ctx, gateway.MemberPayload{
		FirstName:            *first,
		LastName:             *last,
		Email:                *email,
		Phone:                *phone,
		Occupation:           *occupation,
		Skills:               *skills,
		Baptised:             *baptised,
		BaptismDate:          feedback.FormatDate(*baptismDate),
		BaptismParish:        *baptismParish,
		FirstCommunion:       *communion,
		FirstCommunionDate:   feedback.FormatDate(*communionDate),
		FirstCommunionParish: *communionParish,
		Confirmed:            *confirmed,
		ConfirmationDate:     feedback.FormatDate(*confirmationDate),
		ConfirmationParish:   *confirmationParish,
	}, certs)
	if err != nil {
		return err
	}

	if command == "member-update" {
		out.Success("Member updated successfully!")
	} else {
		out.Success("Member added successfully!")
	}
	// The member itself saved; report upload failures alongside, not instead.
	if res.CertErr != nil {
		out.Error(res.CertErr)
	}
	return nil
}

func loadCertFiles(paths map[model.SacramentType]string) ([]member.CertFile, error) {
	var certs []member.CertFile
	for _, t := range model.SacramentTypes {
		path := paths[t]
		if path == "" {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s certificate: %w", t, err)
		}
		certs = append(certs, member.CertFile{Type: t, Name: filepath.Base(path), Content: content})
	}
	return certs, nil
}

func printHousehold(h *model.Household) {
	fmt.Printf("Household: %s (id %d)\n", h.Name, h.ID)
	if h.Address != "" {
		fmt.Printf("  %s, %s %s %s\n", h.Address, h.City, h.Province, h.PostalCode)
	}
	if h.Phone != "" {
		fmt.Printf("  Phone: %s\n", h.Phone)
	}
	if h.Email != "" {
		fmt.Printf("  Email: %s\n", h.Email)
	}
	fmt.Printf("  Members: %d\n", len(h.Members))
}

func printMember(m model.Member) {
	fmt.Printf("%d: %s\n", m.ID, m.FullName())
	if m.Email != "" || m.Phone != "" {
		fmt.Printf("   %s %s\n", m.Email, m.Phone)
	}
	var sacraments []string
	if m.Baptised {
		sacraments = append(sacraments, "Baptised")
	}
	if m.FirstCommunion {
		sacraments = append(sacraments, "First Communion")
	}
	if m.Confirmed {
		sacraments = append(sacraments, "Confirmed")
	}
	if len(sacraments) > 0 {
		fmt.Print("   Sacraments:")
		for _, s := range sacraments {
			fmt.Print(" " + s)
		}
		fmt.Println()
	}
}
