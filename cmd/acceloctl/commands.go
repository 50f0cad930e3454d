package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goliatone/go-accelo-cache/dao"
	"github.com/goliatone/go-accelo-cache/entities"
	"github.com/spf13/cobra"
)

func newContractsCmd(a *app) *cobra.Command {
	var (
		companyID int
		refresh   bool
		repeat    int
	)

	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "List the contracts of a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if repeat < 1 {
				return fmt.Errorf("--repeat must be at least 1, got %d", repeat)
			}

			ctx := cmd.Context()
			if refresh {
				ctx = dao.WithRefresh(ctx)
			}

			var list []*entities.Contract
			for range repeat {
				var err error
				if list, err = a.container.Contracts().GetByCompany(ctx, companyID); err != nil {
					return err
				}
			}
			return a.report(cmd.OutOrStdout(), list)
		},
	}

	cmd.Flags().IntVar(&companyID, "company", 0, "company id")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cached result")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "run the query this many times")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newContractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "contract ID",
		Short: "Show one contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid contract id %q", args[0])
			}

			c, err := a.container.Contracts().GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), c)
		},
	}
}

func newActiveCmd(a *app) *cobra.Command {
	var (
		companyID int
		at        string
	)

	cmd := &cobra.Command{
		Use:   "active",
		Short: "List active contracts, or the active contract of one company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.DateOnly, at)
				if err != nil {
					return fmt.Errorf("invalid --at date %q: %w", at, err)
				}
				now = t
			}

			ctx := cmd.Context()
			if companyID == 0 {
				list, err := a.container.Contracts().GetActiveContracts(ctx, now)
				if err != nil {
					return err
				}
				return a.report(cmd.OutOrStdout(), list)
			}

			c, err := a.container.Contracts().GetActiveContract(ctx, companyID, now)
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), c)
		},
	}

	cmd.Flags().IntVar(&companyID, "company", 0, "only the active contract of this company")
	cmd.Flags().StringVar(&at, "at", "", "evaluate at this date (YYYY-MM-DD) instead of now")
	return cmd
}
