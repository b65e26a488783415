package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ent0n29/katibim/internal/auth"
)

func newLoginCmd(o *rootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if email == "" {
				if email, err = prompt(cmd.OutOrStdout(), in, "E-Posta: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd.OutOrStdout(), in, "Şifre: "); err != nil {
					return err
				}
			}

			c, err := o.anonymous()
			if err != nil {
				return err
			}
			ctx, cancel := o.context(cmd)
			defer cancel()
			sess, err := c.Login(ctx, email, password)
			if err != nil {
				return err
			}
			saved, _ := o.store().Load()
			if err := o.store().Save(savedSession{
				Server:      o.serverURL(saved),
				AccessToken: sess.AccessToken,
				Email:       sess.User.Email,
			}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Giriş yapıldı: "+sess.User.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	return cmd
}

func newLogoutCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c, err := o.authed(); err == nil {
				ctx, cancel := o.context(cmd)
				defer cancel()
				if err := c.Logout(ctx); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("Çıkış yaparken hata: "+err.Error()))
				}
			}
			if err := o.store().Remove(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Çıkış yapıldı.")
			return nil
		},
	}
}

func newWhoamiCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.authed()
			if err != nil {
				return err
			}
			ctx, cancel := o.context(cmd)
			defer cancel()
			user, err := c.Session(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sisteme giriş yapan kullanıcı: "+titleStyle.Render(user.Email))
			return nil
		},
	}
}

func newPasswordCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Reset or change the account password",
	}

	var email string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Email a password recovery link",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}
			c, err := o.anonymous()
			if err != nil {
				return err
			}
			ctx, cancel := o.context(cmd)
			defer cancel()
			if err := c.RequestPasswordReset(ctx, email); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Şifre sıfırlama bağlantısı, eğer sistemimizde kayıtlıysa, e-posta adresinize gönderildi.")
			return nil
		},
	}
	reset.Flags().StringVar(&email, "email", "", "account email")

	var password, confirm string
	update := &cobra.Command{
		Use:   "update",
		Short: "Set a new password for the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if password == "" {
				if password, err = prompt(cmd.OutOrStdout(), in, "Yeni Şifre: "); err != nil {
					return err
				}
			}
			if confirm == "" {
				if confirm, err = prompt(cmd.OutOrStdout(), in, "Yeni Şifre (Tekrar): "); err != nil {
					return err
				}
			}
			if err := auth.ValidateNewPassword(password, confirm); err != nil {
				return err
			}
			c, err := o.authed()
			if err != nil {
				return err
			}
			ctx, cancel := o.context(cmd)
			defer cancel()
			if err := c.UpdatePassword(ctx, password, confirm); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Şifreniz başarıyla güncellendi."))
			return nil
		},
	}
	update.Flags().StringVar(&password, "password", "", "new password (prompted when empty)")
	update.Flags().StringVar(&confirm, "confirm", "", "new password again (prompted when empty)")

	cmd.AddCommand(reset, update)
	return cmd
}

func prompt(out io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSpace(strings.TrimSuffix(label, ": ")), err)
	}
	return strings.TrimSpace(line), nil
}
