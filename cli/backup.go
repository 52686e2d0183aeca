package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bienestar/auth"
	"bienestar/backup"
	"bienestar/config"
	"bienestar/logger"
	"bienestar/store"
)

var (
	pinFlag    string
	outFlag    string
	fileFlag   string
	assumeYes  bool
	errAborted = errors.New("aborted")
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a backup of every readable record as JSON",
	Long: `Unlock the records with the PIN and write a backup document.
The PIN can also be given through BIENESTAR_PIN.`,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the records with the content of a backup",
	RunE:  runImport,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase every record and revoke every API token",
	RunE:  runReset,
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().StringVar(&pinFlag, "pin", "", "8 digit PIN (defaults to $BIENESTAR_PIN)")
	}
	exportCmd.Flags().StringVarP(&outFlag, "out", "o", "-", "output file, - for stdout")
	importCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "backup file to restore")
	importCmd.MarkFlagRequired("file")
	importCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	resetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

func pin() string {
	if pinFlag != "" {
		return pinFlag
	}
	return os.Getenv("BIENESTAR_PIN")
}

// confirm asks on the command input unless --yes was given.
func confirm(cmd *cobra.Command, question string) error {
	if assumeYes {
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Type 'yes' to continue: ", question)
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
		return errAborted
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context(), config.AppConfig, appLog)
	if err != nil {
		return err
	}
	defer rt.Close()

	var buf bytes.Buffer
	if err := exportBackup(rt.Store, pin(), time.Now(), &buf, appLog); err != nil {
		return err
	}
	if outFlag == "-" || outFlag == "" {
		_, err = buf.WriteTo(cmd.OutOrStdout())
		return err
	}
	return os.WriteFile(outFlag, buf.Bytes(), 0o600)
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(fileFlag)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := confirm(cmd, "This replaces every record with the backup."); err != nil {
		return err
	}

	rt, err := openRuntime(cmd.Context(), config.AppConfig, appLog)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := importBackup(rt.Store, pin(), f, appLog)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored %d records, skipped %d\n", len(res.Restored), len(res.Skipped))
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := confirm(cmd, "This erases every record."); err != nil {
		return err
	}
	rt, err := openRuntime(cmd.Context(), config.AppConfig, appLog)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := resetData(rt.Store, appLog); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "all data erased")
	return nil
}

func exportBackup(st *store.Store, pin string, now time.Time, w io.Writer, log *logger.Logger) error {
	key, _, err := auth.NewIdentity(st, log).Login(pin)
	if err != nil {
		return err
	}
	doc := backup.Export(st.Unlock(key), now)
	log.Info("backup exported", "records", len(doc.Records))
	return backup.Encode(w, doc)
}

// importBackup is called after the caller has confirmed the replacement.
func importBackup(st *store.Store, pin string, r io.Reader, log *logger.Logger) (backup.Result, error) {
	key, _, err := auth.NewIdentity(st, log).Login(pin)
	if err != nil {
		return backup.Result{}, err
	}
	doc, err := backup.Decode(r)
	if err != nil {
		return backup.Result{}, err
	}
	res, err := backup.Import(st.Unlock(key), doc, true)
	if err != nil {
		return backup.Result{}, err
	}
	log.Info("backup imported", "restored", len(res.Restored), "skipped", len(res.Skipped))
	return res, nil
}

func resetData(st *store.Store, log *logger.Logger) error {
	auth.NewIdentity(st, log).ClearData()
	if err := auth.RevokeAllAPITokens(); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	log.Info("all data erased")
	return nil
}
