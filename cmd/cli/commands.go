package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/planner"
	"github.com/and161185/meal-planner/internal/session"
)

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// readPassword prompts on a terminal without echo, otherwise reads one line.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		return string(b), err
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func passwordFlag(cmd *cobra.Command, pw string) (string, error) {
	if cmd.Flags().Changed("password") {
		return pw, nil
	}
	return readPassword(cmd, "Password: ")
}

func sess(cmd *cobra.Command) *session.Session { return session.MustFromContext(cmd.Context()) }

// ---- identity ----

func signUpCmd(a *app) *cobra.Command {
	var email, pw, name string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordFlag(cmd, pw)
			if err != nil {
				return err
			}
			if err := a.env.signUp.SignUp(cmd.Context(), email, pw, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed up as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&pw, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var email, pw string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordFlag(cmd, pw)
			if err != nil {
				return err
			}
			s := sess(cmd)
			if err := s.Login(cmd.Context(), email, pw); err != nil {
				return err
			}
			who := email
			if u := s.User(); u != nil {
				who = u.Email
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", who)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&pw, "password", "p", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sess(cmd).Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := sess(cmd).User()
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func printUser(w io.Writer, u *model.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "uid\t%s\n", u.UID)
	fmt.Fprintf(tw, "email\t%s\n", u.Email)
	if u.DisplayName != "" {
		fmt.Fprintf(tw, "name\t%s\n", u.DisplayName)
	}
	_ = tw.Flush()
}

func passwordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Reset or change the password",
	}

	var email string
	forgot := &cobra.Command{
		Use:   "forgot",
		Short: "Send a reset code to the email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sess(cmd).ForgotPassword(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "if the account exists a reset code is on its way")
			return nil
		},
	}
	forgot.Flags().StringVarP(&email, "email", "e", "", "email")
	_ = forgot.MarkFlagRequired("email")

	var resetEmail, token, resetPw string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with a reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordFlag(cmd, resetPw)
			if err != nil {
				return err
			}
			if err := sess(cmd).ResetPassword(cmd.Context(), resetEmail, token, pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password reset")
			return nil
		},
	}
	reset.Flags().StringVarP(&resetEmail, "email", "e", "", "email")
	reset.Flags().StringVarP(&token, "token", "t", "", "reset code")
	reset.Flags().StringVarP(&resetPw, "password", "p", "", "new password (prompted when omitted)")
	_ = reset.MarkFlagRequired("email")
	_ = reset.MarkFlagRequired("token")

	var setPw string
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the password of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordFlag(cmd, setPw)
			if err != nil {
				return err
			}
			if err := sess(cmd).SetPassword(cmd.Context(), pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		},
	}
	set.Flags().StringVarP(&setPw, "password", "p", "", "new password (prompted when omitted)")

	cmd.AddCommand(forgot, reset, set)
	return cmd
}

// ---- recipes ----

func recipeByID(p *planner.Planner, id string) (model.Recipe, error) {
	r, ok := p.Store().Recipes.Get(id)
	if !ok || r.Attributes.SoftDeleted {
		return model.Recipe{}, fmt.Errorf("recipe %s not found", id)
	}
	return r, nil
}

func recipesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "Manage recipes",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recipes by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range p.Recipes() {
				fmt.Fprintf(tw, "%s\t%s\n", r.ID, r.Attributes.Title)
			}
			return tw.Flush()
		},
	}

	add := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.planner(cmd)
			if err != nil {
				return err
			}
			r, err := p.SaveRecipe(cmd.Context(), nil, model.RecipeAttributes{Title: args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.ID)
			return nil
		},
	}

	edit := &cobra.Command{
		Use:   "edit ID TITLE",
		Short: "Rename a recipe",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.planner(cmd)
			if err != nil {
				return err
			}
			r, err := recipeByID(p, args[0])
			if err != nil {
				return err
			}
			if _, err := p.SaveRecipe(cmd.Context(), &r, model.RecipeAttributes{Title: args[1]}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "saved")
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm ID",
		Short: "Hide a recipe; planned meals keep it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.planner(cmd)
			if err != nil {
				return err
			}
			r, err := recipeByID(p, args[0])
			if err != nil {
				return err
			}
			if _, err := p.SoftDeleteRecipe(cmd.Context(), &r); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}

	cmd.AddCommand(list, add, edit, rm)
	return cmd
}

// ---- week and meals ----

func weekCmd(a *app) *cobra.Command {
	var start string
	var shift int
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show seven days of planned meals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd)
			if err != nil {
				return err
			}
			from := planner.WeekStart(time.Now())
			if start != "" {
				if from, err = parseDate(start); err != nil {
					return err
				}
			}
			printWeek(cmd.OutOrStdout(), p.Week(planner.ShiftWeek(from, shift)))
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&shift, "shift", 0, "move by this many weeks")
	return cmd
}

func printWeek(w io.Writer, slots []planner.Slot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range slots {
		title := "-"
		if !s.Empty() {
			title = s.RecipeTitle
			if title == "" {
				title = "(unknown recipe)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Date.Format("Mon"), s.Date.Format(dateLayout), title)
	}
	_ = tw.Flush()
}

func mealsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meals",
		Short: "Plan or clear a day",
	}

	var addDate string
	add := &cobra.Command{
		Use:   "add RECIPE_ID",
		Short: "Plan a recipe on a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.planner(cmd)
			if err != nil {
				return err
			}
			day, err := parseDate(addDate)
			if err != nil {
				return err
			}
			r, err := recipeByID(p, args[0])
			if err != nil {
				return err
			}
			m, err := p.SelectRecipe(cmd.Context(), day, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.ID)
			return nil
		},
	}
	add.Flags().StringVarP(&addDate, "date", "d", "", "day, YYYY-MM-DD")
	_ = add.MarkFlagRequired("date")

	var rmDate string
	rm := &cobra.Command{
		Use:   "rm",
		Short: "Clear the meal planned on a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd)
			if err != nil {
				return err
			}
			day, err := parseDate(rmDate)
			if err != nil {
				return err
			}
			if err := p.ToggleSlot(cmd.Context(), p.Week(day)[0]); err != nil {
				if errors.Is(err, planner.ErrEmptySlot) {
					return fmt.Errorf("%s: %w", rmDate, err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		},
	}
	rm.Flags().StringVarP(&rmDate, "date", "d", "", "day, YYYY-MM-DD")
	_ = rm.MarkFlagRequired("date")

	cmd.AddCommand(add, rm)
	return cmd
}
