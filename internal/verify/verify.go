// Package verify checks detached package signatures against the
// managed keyring and fetches missing public keys on demand.
package verify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sfg-os/starpack/internal/output"
)

// Reason discriminates why a verification failed.
type Reason string

const (
	ReasonBadSignature Reason = "bad signature"
	ReasonExpiredSig   Reason = "signature expired"
	ReasonExpiredKey   Reason = "key expired"
	ReasonRevokedKey   Reason = "key revoked"
	ReasonMissingKey   Reason = "missing public key"
	ReasonImportFailed Reason = "key import failed"
	ReasonOther        Reason = "verification failed"
)

// Error is a failed signature verification.
type Error struct {
	Package string
	Reason  Reason
	KeyID   string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("signature verification of %s failed: %s", e.Package, e.Reason)
	if e.KeyID != "" {
		msg += " (" + e.KeyID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KeyFetcher downloads a single URL to a destination file. The
// downloader's Fetcher satisfies this.
type KeyFetcher interface {
	Download(ctx context.Context, url, dest string) error
}

// Verifier checks detached signatures with gpg against the keyring at
// <root>/etc/starpack/keys/starpack.gpg.
type Verifier struct {
	root     string
	gpg      string
	fetcher  KeyFetcher
	repoURLs []string
}

// New creates a Verifier rooted at the given install directory.
// repoURLs are searched in order when a public key is missing.
func New(root string, fetcher KeyFetcher, repoURLs []string) *Verifier {
	return &Verifier{
		root:     root,
		gpg:      "gpg",
		fetcher:  fetcher,
		repoURLs: repoURLs,
	}
}

func (v *Verifier) keyringPath() string {
	return filepath.Join(v.root, "etc", "starpack", "keys", "starpack.gpg")
}

func (v *Verifier) cacheDir() string {
	return filepath.Join(v.root, "var", "lib", "starpack", "cache")
}

// gpgStatus is the parsed machine-readable output of one gpg run.
type gpgStatus struct {
	good       bool
	bad        bool
	expiredSig bool
	expiredKey bool
	revokedKey bool
	missingKey string
	goodKeyID  string
	exitErr    error
}

// Verify checks sigPath as a detached signature over pkgPath. On a
// missing public key it downloads <repo>keys/<keyid>.asc from each
// configured repository in order, imports the first hit, and re-runs
// verification exactly once.
func (v *Verifier) Verify(ctx context.Context, pkgPath, sigPath string) error {
	name := filepath.Base(pkgPath)

	if _, err := os.Stat(sigPath); err != nil {
		return &Error{Package: name, Reason: ReasonOther, Err: fmt.Errorf("missing signature file %s: %w", sigPath, err)}
	}
	if _, err := os.Stat(pkgPath); err != nil {
		return &Error{Package: name, Reason: ReasonOther, Err: fmt.Errorf("missing data file %s: %w", pkgPath, err)}
	}
	if err := os.MkdirAll(filepath.Dir(v.keyringPath()), 0o755); err != nil {
		return &Error{Package: name, Reason: ReasonOther, Err: err}
	}

	st, err := v.runVerify(ctx, pkgPath, sigPath)
	if err != nil {
		return &Error{Package: name, Reason: ReasonOther, Err: err}
	}
	if st.good && st.exitErr == nil {
		return nil
	}

	switch {
	case st.bad:
		return &Error{Package: name, Reason: ReasonBadSignature}
	case st.expiredSig:
		return &Error{Package: name, Reason: ReasonExpiredSig}
	case st.expiredKey:
		return &Error{Package: name, Reason: ReasonExpiredKey}
	case st.revokedKey:
		return &Error{Package: name, Reason: ReasonRevokedKey}
	}

	if st.missingKey != "" {
		if err := v.importMissingKey(ctx, st.missingKey); err != nil {
			return &Error{Package: name, Reason: ReasonImportFailed, KeyID: st.missingKey, Err: err}
		}

		output.Info("re-verifying signature for %s", name)
		st, err = v.runVerify(ctx, pkgPath, sigPath)
		if err != nil {
			return &Error{Package: name, Reason: ReasonOther, Err: err}
		}
		if st.good && st.exitErr == nil {
			return nil
		}
		return &Error{Package: name, Reason: ReasonMissingKey, KeyID: st.missingKey,
			Err: errors.New("verification still fails after key import")}
	}

	return &Error{Package: name, Reason: ReasonOther, Err: st.exitErr}
}

// runVerify invokes gpg in batch mode and parses its status output.
func (v *Verifier) runVerify(ctx context.Context, pkgPath, sigPath string) (gpgStatus, error) {
	cmd := exec.CommandContext(ctx, v.gpg,
		"--batch", "--no-tty", "--status-fd", "1",
		"--no-default-keyring", "--keyring", v.keyringPath(),
		"--verify", sigPath, pkgPath)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return gpgStatus{}, fmt.Errorf("running gpg: %w", runErr)
		}
	}

	st := parseStatus(&stdout)
	st.exitErr = runErr
	return st, nil
}

func parseStatus(r *bytes.Buffer) gpgStatus {
	var st gpgStatus
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "[GNUPG:] ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[1] {
		case "GOODSIG":
			st.good = true
			if len(fields) >= 3 {
				st.goodKeyID = fields[2]
			}
		case "BADSIG":
			st.bad = true
		case "EXPSIG":
			st.expiredSig = true
		case "EXPKEYSIG":
			st.expiredKey = true
		case "REVKEYSIG":
			st.revokedKey = true
		case "NO_PUBKEY":
			if len(fields) >= 3 {
				st.missingKey = fields[2]
			}
		}
	}
	return st
}

// importMissingKey downloads <repo>keys/<keyid>.asc from each
// repository in order and imports the first one that arrives.
func (v *Verifier) importMissingKey(ctx context.Context, keyID string) error {
	output.Warn("missing public key %s, searching repositories", keyID)

	if len(v.repoURLs) == 0 {
		return errors.New("no repositories configured to search for key")
	}
	if err := os.MkdirAll(v.cacheDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tempKey := filepath.Join(v.cacheDir(), keyID+".asc.tmp")
	defer os.Remove(tempKey)

	downloaded := false
	for _, repo := range v.repoURLs {
		keyURL := repo + "keys/" + keyID + ".asc"
		output.Info("attempting key download: %s", keyURL)
		if err := v.fetcher.Download(ctx, keyURL, tempKey); err == nil {
			downloaded = true
			break
		}
		os.Remove(tempKey)
	}
	if !downloaded {
		return fmt.Errorf("key %s not found in any repository", keyID)
	}

	cmd := exec.CommandContext(ctx, v.gpg,
		"--batch", "--no-tty",
		"--no-default-keyring", "--keyring", v.keyringPath(),
		"--import", tempKey)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("gpg import of %s failed: %w (output: %s)", keyID, err, strings.TrimSpace(string(out)))
	}

	output.Success("imported key %s", keyID)
	return nil
}
