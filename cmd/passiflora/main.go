package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"passiflora/internal/client"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const defaultServer = "http://127.0.0.1:8080"

var (
	serverURL   string
	sessionPath string
)

// Terminal access, swapped out in tests.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "passiflora: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passiflora",
		Short: "Passiflora file sharing client",
		Long: `passiflora uploads files to a Passiflora server, lists what you have stored
and downloads it again. Log in once; the session is kept in your config directory.`,
		SilenceUsage: true,
	}

	server := os.Getenv("PASSIFLORA_URL")
	if server == "" {
		server = defaultServer
	}
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "s", server, "Server base URL")
	cmd.PersistentFlags().StringVar(&sessionPath, "session", "", "Session file (default <config dir>/passiflora/session.json)")

	cmd.AddCommand(
		newRegisterCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newListCmd(),
		newUploadCmd(),
		newDownloadCmd(),
	)
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var email, username, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}
			if username == "" {
				username = email
			}

			c := client.New(serverURL, nil)
			if err := c.Register(cmd.Context(), email, username, pw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s, run `passiflora login` to sign in\n", email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (defaults to the email)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordOrPrompt(cmd, password)
			if err != nil {
				return err
			}

			c := client.New(serverURL, nil)
			res, err := c.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}

			path, err := resolveSessionPath()
			if err != nil {
				return err
			}
			s := &client.Session{Server: serverURL, UserID: res.ID, Email: res.Email, Token: res.Token}
			if err := client.SaveSession(path, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (user %d)\n", res.Email, res.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveSessionPath()
			if err != nil {
				return err
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your stored files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, s, err := sessionClient(cmd)
			if err != nil {
				return err
			}

			files, err := c.ListFiles(cmd.Context(), s.UserID)
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), files)
			return nil
		},
	}
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files or directories",
		Long: `Upload sends every given file in one request. Directories are walked
recursively and their files keep their relative path as the stored name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := client.ParseArgs(args)
			if err != nil {
				return err
			}
			local, err := client.CollectFiles(parsed)
			if err != nil {
				return err
			}

			c, _, err := sessionClient(cmd)
			if err != nil {
				return err
			}

			stored, err := c.Upload(cmd.Context(), local)
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), stored)
			return nil
		},
	}
}

func newDownloadCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Download a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q", args[0])
			}

			c, s, err := sessionClient(cmd)
			if err != nil {
				return err
			}

			if output == "-" {
				_, _, err := c.Download(cmd.Context(), s.UserID, fileID, cmd.OutOrStdout())
				return err
			}
			return downloadToFile(cmd, c, s.UserID, fileID, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `Output path, "-" for stdout (default: the stored name in the current directory)`)
	return cmd
}

// downloadToFile writes into a temp file next to the target and renames it
// once the transfer completes.
func downloadToFile(cmd *cobra.Command, c *client.Client, userID, fileID int64, output string) error {
	dir := "."
	if output != "" {
		dir = filepath.Dir(output)
	}
	tmp, err := os.CreateTemp(dir, ".passiflora-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	name, n, err := c.Download(cmd.Context(), userID, fileID, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if output == "" {
		output = localName(name, fileID)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d bytes)\n", output, n)
	return nil
}

// localName turns a stored display name into a file name in the current
// directory. Directory parts are dropped.
func localName(stored string, fileID int64) string {
	name := filepath.Base(filepath.FromSlash(strings.ReplaceAll(stored, `\`, "/")))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "file-" + strconv.FormatInt(fileID, 10)
	}
	return name
}

func printFiles(w io.Writer, files []client.FileInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSIZE\tTYPE\tNAME")
	for _, f := range files {
		size := "pending"
		if f.Size != nil {
			size = strconv.FormatInt(*f.Size, 10)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.ID, size, f.MimeType, f.Name)
	}
	tw.Flush()
}

func resolveSessionPath() (string, error) {
	if sessionPath != "" {
		return sessionPath, nil
	}
	return client.DefaultSessionPath()
}

// sessionClient builds an authenticated client from the stored session.
// An explicit --server flag wins over the server saved at login.
func sessionClient(cmd *cobra.Command) (*client.Client, *client.Session, error) {
	path, err := resolveSessionPath()
	if err != nil {
		return nil, nil, err
	}
	s, err := client.LoadSession(path)
	if err != nil {
		if errors.Is(err, client.ErrNoSession) {
			return nil, nil, errors.New("not logged in, run `passiflora login` first")
		}
		return nil, nil, err
	}

	server := s.Server
	if f := cmd.Flags().Lookup("server"); (f != nil && f.Changed) || server == "" {
		server = serverURL
	}

	c := client.New(server, nil)
	c.SetToken(s.Token)
	return c, s, nil
}

// passwordOrPrompt returns the flag value, or asks for the password.
// Input is read without echo when stdin is a terminal.
func passwordOrPrompt(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	pw, err := readPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
