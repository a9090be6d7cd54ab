package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/scrtlabs/SecretNetwork-sub003/api"
	"github.com/scrtlabs/SecretNetwork-sub003/api/clients"
	"github.com/scrtlabs/SecretNetwork-sub003/cmd/flags"
	"github.com/scrtlabs/SecretNetwork-sub003/contractkey"
	"github.com/scrtlabs/SecretNetwork-sub003/cryptoutils"
	"github.com/urfave/cli/v2"
)

var flagNodeAdminURL = &cli.StringFlag{
	Name:    "node-admin-url",
	EnvVars: []string{"NODE_ADMIN_URL"},
	Value:   "http://127.0.0.1:8080/admin",
	Usage:   "admin API of the node",
}
var flagAdminPrivkey = &cli.StringFlag{
	Name:  "admin-privkey-file",
	Value: "admin-private.pem",
	Usage: "Path to admin private key",
}
var flagAdminPubkey = &cli.StringFlag{
	Name:  "admin-pubkey-file",
	Value: "admin-public.pem",
	Usage: "Path to admin public key",
}
var flagAdminsFile = &cli.StringFlag{
	Name:  "admins-file",
	Value: "admins.json",
	Usage: "Path to the admin keys file the node loads",
}
var flagShareFile = &cli.StringFlag{
	Name:  "share-file",
	Value: "seed-share.json",
	Usage: "Path to the fetched encrypted share",
}
var flagThreshold = &cli.IntFlag{
	Name:  "threshold",
	Value: 2,
}
var flagTotalShares = &cli.IntFlag{
	Name:  "total-shares",
	Value: 3,
}

// adminsConfig is the file read by httpserver.LoadAdminKeys.
type adminsConfig struct {
	Admins []adminEntry `json:"admins"`
}

type adminEntry struct {
	ID     string `json:"id"`
	PubKey string `json:"pubkey"`
}

func adminClient(cCtx *cli.Context) (*clients.AdminClient, error) {
	publicKeyPEM, err := os.ReadFile(cCtx.String(flagAdminPubkey.Name))
	if err != nil {
		return nil, err
	}
	privateKeyPEM, err := os.ReadFile(cCtx.String(flagAdminPrivkey.Name))
	if err != nil {
		return nil, err
	}
	privateKey, err := cryptoutils.ParseAdminPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return clients.NewAdminClient(cCtx.String(flagNodeAdminURL.Name), cryptoutils.Fingerprint(publicKeyPEM), privateKey), nil
}

func main() {
	app := &cli.App{
		Name:           "admin",
		Usage:          "Escrow and recover node seeds, sign override policies",
		Flags:          flags.LogFlags,
		DefaultCommand: "status",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "print the node's seed state",
				Flags: []cli.Flag{flagNodeAdminURL},
				Action: func(cCtx *cli.Context) error {
					status, err := clients.NewAdminClient(cCtx.String(flagNodeAdminURL.Name), "", nil).GetStatus()
					if err != nil {
						return err
					}
					out, err := json.Marshal(status)
					if err != nil {
						return err
					}
					fmt.Println(string(out))
					return nil
				},
			},
			{
				Name:  "generate-admin",
				Usage: "generate an administrator key pair",
				Flags: []cli.Flag{flagAdminPrivkey, flagAdminPubkey},
				Action: func(cCtx *cli.Context) error {
					privateKeyPEM, publicKeyPEM, err := cryptoutils.GenerateAdminKeyPair()
					if err != nil {
						return err
					}
					if err := os.WriteFile(cCtx.String(flagAdminPrivkey.Name), privateKeyPEM, 0600); err != nil {
						return err
					}
					if err := os.WriteFile(cCtx.String(flagAdminPubkey.Name), publicKeyPEM, 0600); err != nil {
						return err
					}
					fmt.Println(cryptoutils.Fingerprint(publicKeyPEM))
					return nil
				},
			},
			{
				Name:  "generate-admins-config",
				Usage: "write the admin keys file from administrator public keys",
				Flags: []cli.Flag{
					flagAdminsFile,
					&cli.StringSliceFlag{
						Name:     "admin-pubkey-files",
						Required: true,
					},
				},
				Action: func(cCtx *cli.Context) error {
					config := adminsConfig{}
					for _, pubkey := range cCtx.StringSlice("admin-pubkey-files") {
						publicKeyPEM, err := os.ReadFile(pubkey)
						if err != nil {
							return err
						}
						config.Admins = append(config.Admins, adminEntry{
							ID:     cryptoutils.Fingerprint(publicKeyPEM),
							PubKey: string(publicKeyPEM),
						})
					}

					configBytes, err := json.MarshalIndent(config, "", "  ")
					if err != nil {
						return err
					}
					return os.WriteFile(cCtx.String(flagAdminsFile.Name), configBytes, 0600)
				},
			},
			{
				Name:  "escrow",
				Usage: "split the seed of a running node among the administrators",
				Flags: []cli.Flag{flagNodeAdminURL, flagAdminPrivkey, flagAdminPubkey, flagThreshold, flagTotalShares},
				Action: func(cCtx *cli.Context) error {
					c, err := adminClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := c.Escrow(cCtx.Int(flagThreshold.Name), cCtx.Int(flagTotalShares.Name))
					if err != nil {
						return err
					}
					for _, a := range resp.ShareAssignments {
						fmt.Printf("share %d -> %s\n", a.ShareIndex, a.AdminID)
					}
					return nil
				},
			},
			{
				Name:  "fetch-share",
				Usage: "fetch this administrator's encrypted share",
				Flags: []cli.Flag{flagNodeAdminURL, flagAdminPrivkey, flagAdminPubkey, flagShareFile},
				Action: func(cCtx *cli.Context) error {
					c, err := adminClient(cCtx)
					if err != nil {
						return err
					}
					share, err := c.FetchShare()
					if err != nil {
						return err
					}
					shareJSON, err := json.Marshal(share)
					if err != nil {
						return err
					}
					return os.WriteFile(cCtx.String(flagShareFile.Name), shareJSON, 0600)
				},
			},
			{
				Name:  "init-recovery",
				Usage: "put a node without a seed into recovery mode",
				Flags: []cli.Flag{flagNodeAdminURL, flagAdminPrivkey, flagAdminPubkey, flagThreshold},
				Action: func(cCtx *cli.Context) error {
					c, err := adminClient(cCtx)
					if err != nil {
						return err
					}
					return c.InitRecover(cCtx.Int(flagThreshold.Name))
				},
			},
			{
				Name:  "submit-share",
				Usage: "decrypt the fetched share and submit it to a recovering node",
				Flags: []cli.Flag{flagNodeAdminURL, flagAdminPrivkey, flagAdminPubkey, flagShareFile},
				Action: func(cCtx *cli.Context) error {
					c, err := adminClient(cCtx)
					if err != nil {
						return err
					}
					privateKeyPEM, err := os.ReadFile(cCtx.String(flagAdminPrivkey.Name))
					if err != nil {
						return err
					}
					shareJSON, err := os.ReadFile(cCtx.String(flagShareFile.Name))
					if err != nil {
						return err
					}

					var shareData api.AdminGetShareResponse
					if err := json.Unmarshal(shareJSON, &shareData); err != nil {
						return err
					}
					encrypted, err := base64.StdEncoding.DecodeString(shareData.EncryptedShare)
					if err != nil {
						return err
					}
					share, err := cryptoutils.DecryptAsAdmin(privateKeyPEM, encrypted)
					if err != nil {
						return err
					}
					defer cryptoutils.Wipe(share)

					return c.SubmitShare(share)
				},
			},
			{
				Name:  "wait-ready",
				Usage: "wait until the node holds a seed",
				Flags: []cli.Flag{
					flagNodeAdminURL,
					&cli.DurationFlag{Name: "timeout", Value: 10 * time.Minute},
				},
				Action: func(cCtx *cli.Context) error {
					ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration("timeout"))
					defer cancel()
					return clients.NewAdminClient(cCtx.String(flagNodeAdminURL.Name), "", nil).WaitForReady(ctx, 2*time.Second)
				},
			},
			{
				Name:  "sign-policy",
				Usage: "sign a contract key override policy document",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "policy-file", Required: true, Usage: "JSON policy document"},
					&cli.StringFlag{Name: "signer-key-file", Required: true, Usage: "hex secp256k1 private key"},
					&cli.StringFlag{Name: "out", Value: "override-policy.json"},
				},
				Action: func(cCtx *cli.Context) error {
					logger := flags.SetupLogger(cCtx)

					docJSON, err := os.ReadFile(cCtx.String("policy-file"))
					if err != nil {
						return err
					}
					var doc contractkey.PolicyDocument
					if err := json.Unmarshal(docJSON, &doc); err != nil {
						return fmt.Errorf("invalid policy document: %w", err)
					}
					if doc.IssuedAt == 0 {
						doc.IssuedAt = time.Now().Unix()
					}

					key, err := crypto.LoadECDSA(cCtx.String("signer-key-file"))
					if err != nil {
						return err
					}
					signed, err := contractkey.SignPolicy(doc, key)
					if err != nil {
						return err
					}
					if err := os.WriteFile(cCtx.String("out"), signed, 0644); err != nil {
						return err
					}
					logger.Info("Override policy signed",
						"signer", crypto.PubkeyToAddress(key.PublicKey).Hex(),
						"version", doc.Version)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
