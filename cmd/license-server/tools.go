package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/antikraj/plugin-license-server1/internal/config"
	"github.com/antikraj/plugin-license-server1/internal/license"
	"github.com/antikraj/plugin-license-server1/internal/security"
	"github.com/antikraj/plugin-license-server1/pkg/contracts"
)

func newCmdKeygen(out io.Writer) *cobra.Command {
	var (
		count  int
		length int
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print freshly generated license keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be positive, got %d", count)
			}
			if length < config.MinKeyLength {
				return fmt.Errorf("length must be at least %d, got %d", config.MinKeyLength, length)
			}
			gen := license.NewKeyGenerator(length)
			for i := 0; i < count; i++ {
				key, err := gen.Generate()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, key)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of keys")
	cmd.Flags().IntVarP(&length, "length", "l", config.DefaultKeyLength, "characters per key")
	return cmd
}

func newCmdHashPassword(in io.Reader, out io.Writer) *cobra.Command {
	var (
		password string
		cost     int
	)

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for security.admin_password_hash",
		Long:  "Hashes --password, or the first line of stdin when the flag is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				line, err := bufio.NewReader(in).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := security.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password to hash (read from stdin when empty)")
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func newCmdVersion(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(out, contracts.GetFullVersionString())
		},
	}
}
