package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceauth/internal/constants"
	"github.com/kozaktomas/faceauth/internal/fingerprint"
	"github.com/kozaktomas/faceauth/internal/identity"
	"github.com/kozaktomas/faceauth/internal/imageio"
	"github.com/kozaktomas/faceauth/internal/matcher"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate a face against the enrolled identities",
	Long: `Compute the face embedding of an image and look it up among the enrolled
identities. Unknown faces are denied, or enrolled when --autosave is set.

Examples:
  # Authenticate a single image
  faceauth auth --image photos/me.jpg --showid

  # Authenticate every image in a directory, enrolling unknown faces
  faceauth auth --dir photos --autosave

  # Enroll without prompting
  faceauth auth --image photos/alice.jpg --autosave --name "Alice"`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)

	authCmd.Flags().String("image", "", "Image file to authenticate")
	authCmd.Flags().String("dir", "", "Authenticate every image in this directory")
	authCmd.Flags().Bool("autosave", false, "Enroll faces that do not match anyone")
	authCmd.Flags().Bool("showid", false, "Show the name and id of the matched or enrolled identity")
	authCmd.Flags().String("name", "", "Display name for enrollment instead of prompting")
	authCmd.MarkFlagsMutuallyExclusive("image", "dir")
	authCmd.MarkFlagsOneRequired("image", "dir")
}

// faceExtractor produces the embedding of the face in an image.
type faceExtractor interface {
	ExtractFace(ctx context.Context, imageData []byte) ([]float32, error)
}

type authenticator struct {
	matcher   *matcher.Matcher
	extractor faceExtractor
	maxSize   int
	autosave  bool
	showID    bool
	name      string // used instead of prompting when non-empty
	out       io.Writer
	in        *bufio.Reader
}

func runAuth(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := cmd.Context()

	imagePath := mustGetString(cmd, "image")
	dir := mustGetString(cmd, "dir")
	name := mustGetString(cmd, "name")
	if name != "" {
		name = identity.CleanDisplayName(name)
		if _, err := identity.EncodeDisplayName(name); err != nil {
			return err
		}
	}

	m, err := newMatcher(newRepository())
	if err != nil {
		return err
	}
	a := &authenticator{
		matcher:   m,
		extractor: newEmbeddingClient(),
		maxSize:   cfg.Image.MaxSize,
		autosave:  mustGetBool(cmd, "autosave"),
		showID:    mustGetBool(cmd, "showid"),
		name:      name,
		out:       cmd.OutOrStdout(),
		in:        bufio.NewReader(cmd.InOrStdin()),
	}

	if imagePath != "" {
		err = a.authenticate(ctx, imagePath)
	} else {
		err = a.authenticateDir(ctx, dir, cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Took %d seconds\n", int(time.Since(start).Seconds()))
	return nil
}

func (a *authenticator) authenticateDir(ctx context.Context, dir string, progress io.Writer) error {
	paths, err := imageio.ListImages(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(a.out, "Empty Directory!")
		return nil
	}

	// Interactive prompts and a progress bar do not mix.
	var bar *progressbar.ProgressBar
	if !a.autosave || a.name != "" {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription("Authenticating"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
		)
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Using image: %s\n", filepath.Base(path))
		if err := a.authenticate(ctx, path); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return nil
}

// authenticate runs one attempt. Images that cannot be processed are reported
// and do not fail the command; storage failures do.
func (a *authenticator) authenticate(ctx context.Context, path string) error {
	defer fmt.Fprintln(a.out)

	imageData, err := imageio.LoadFile(path, a.maxSize)
	if err != nil {
		logger.Debug("image load failed", "image", path, "error", err)
		fmt.Fprintln(a.out, "Error : cannot process image.")
		return nil
	}

	embedding, err := a.extractor.ExtractFace(ctx, imageData)
	if errors.Is(err, fingerprint.ErrExtractionFailed) {
		logger.Debug("extraction failed", "image", path, "error", err)
		fmt.Fprintln(a.out, "Error : Face features cannot be extracted from this file.")
		return nil
	}
	if err != nil {
		return err
	}

	result, err := a.matcher.AuthenticateOrEnroll(ctx, embedding, matcher.EnrollOptions{
		Enroll:      a.autosave,
		DisplayName: a.displayName,
	})
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(a.out, "Warning: skipped %s: %v\n", w.Ref.Filename, w.Err)
	}

	switch result.Status {
	case matcher.StatusMatched:
		fmt.Fprintln(a.out, "---- Access Granted ----")
	case matcher.StatusNoMatch:
		fmt.Fprintln(a.out, "---- Access Denied! ----")
	case matcher.StatusEnrolled:
		// Access Denied was already printed before enrolling.
	}
	if a.showID && result.Ref != nil {
		showUserInfo(a.out, *result.Ref)
	}
	return nil
}

// displayName runs only when an unknown face is about to be enrolled.
func (a *authenticator) displayName() (string, error) {
	fmt.Fprintln(a.out, "---- Access Denied! ----")
	fmt.Fprintln(a.out, "Saving new user...")
	if a.name != "" {
		return a.name, nil
	}

	for {
		fmt.Fprintf(a.out, "Enter username:  [%s]: ", constants.DefaultUsername)
		line, err := a.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read username: %w", err)
		}
		name := strings.TrimSpace(line)
		if name == "" {
			name = constants.DefaultUsername
		}
		name = identity.CleanDisplayName(name)

		if _, encErr := identity.EncodeDisplayName(name); encErr != nil {
			fmt.Fprintf(a.out, "Error: %v\n", encErr)
			if errors.Is(err, io.EOF) {
				return "", encErr
			}
			continue
		}
		return name, nil
	}
}

func showUserInfo(out io.Writer, ref identity.Ref) {
	fmt.Fprintf(out, "Username: %s\n", ref.DisplayName)
	fmt.Fprintf(out, "Unique Identifier: %s\n", ref.ID)
}
