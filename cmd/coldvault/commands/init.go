package commands

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/coldvault/coldvault/pkg/config"
	"github.com/coldvault/coldvault/pkg/cryptoframe"
)

var (
	initForce     bool
	initEncrypted bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file, and an encryption key pair if requested",
	Long: `Initialize a sample coldvault configuration file at
$XDG_CONFIG_HOME/coldvault/config.yaml (or --config's path).

With --encrypt, also generates a NaCl box key pair for the repository:
the public key is written alongside the config so future "backup" runs
can address and seal objects, and the private key is wrapped under a
passphrase you supply and saved locally as a recovery object
(spec.md §4.2). The first "backup" run also uploads a copy to the
repository itself, so a lost cache can be rebuilt from the passphrase
alone.

Examples:
  coldvault init
  coldvault init --encrypt
  coldvault init --config /etc/coldvault/config.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	initCmd.Flags().BoolVar(&initEncrypted, "encrypt", false, "generate a repository key pair and enable encryption")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	if !initForce {
		if _, err := loadConfigIfExists(configPath); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	cfg := config.GetDefaultConfig()

	if initEncrypted {
		if err := provisionEncryption(cfg); err != nil {
			return err
		}
	}

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to set your storage backend")
	fmt.Printf("  2. Register a backup root: coldvault addroot /path/to/data\n")
	fmt.Println("  3. Run: coldvault scan && coldvault backup")
	return nil
}

func loadConfigIfExists(path string) (*config.Config, error) {
	return config.Load(path)
}

// provisionEncryption generates a repository key pair, prompts for a
// passphrase to wrap the private key, and wires the resulting paths into
// cfg's Crypto section.
func provisionEncryption(cfg *config.Config) error {
	kp, err := cryptoframe.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	prompt := promptui.Prompt{Label: "Passphrase to protect the repository private key", Mask: '*'}
	passphrase, err := prompt.Run()
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}

	ro, err := cryptoframe.WrapPrivateKey(kp, []byte(passphrase))
	if err != nil {
		return fmt.Errorf("wrap private key: %w", err)
	}

	pubKeyPath := config.GetConfigDir() + "/pubkey"
	if err := savePublicKey(pubKeyPath, kp.Public); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	if err := saveRecoveryObject(recoveryObjectPath(), ro); err != nil {
		return fmt.Errorf("write recovery object: %w", err)
	}

	cfg.Crypto.EncryptionEnabled = true
	cfg.Crypto.PublicKeyPath = pubKeyPath

	fmt.Println("\nSecurity note:")
	fmt.Println("  The repository private key is wrapped under your passphrase and")
	fmt.Printf("  saved to %s.\n", recoveryObjectPath())
	fmt.Println("  A copy is also uploaded to the repository as the well-known")
	fmt.Println("  recovery object the first time you run a backup. Do not lose")
	fmt.Println("  the passphrase: without it, encrypted objects are unrecoverable.")
	return nil
}
