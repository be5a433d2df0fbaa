// Command cart manages the local shopping cart and keeps it in sync with
// the cart service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/infrastructure/auth"
	"github.com/erp/storefront/internal/infrastructure/config"
	"github.com/erp/storefront/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	errRejected        = errors.New("cart left unchanged")
	errProductRequired = errors.New("product ID required")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "cart",
		Short:         "Local shopping cart synced with the cart service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./config.toml)")

	// withApp opens a cart session around fn and always tears it down
	withApp := func(fn func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			logCfg := logger.DefaultConfig()
			logCfg.Level = cfg.Log.Level
			log, err := logger.New(logCfg)
			if err != nil {
				return err
			}
			defer func() {
				logger.Sync(log)
			}()

			a, err := openApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.close()
			return fn(cmd, a)
		}
	}

	root.AddCommand(
		newShowCmd(withApp),
		newAddCmd(withApp),
		newSetCmd(withApp),
		newRemoveCmd(withApp),
		newClearCmd(withApp),
		newLoginCmd(withApp),
		newLogoutCmd(withApp),
	)
	return root
}

type appRunner func(fn func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error

func newShowCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			a.engine.Wait()
			printCart(cmd.OutOrStdout(), a)
			return nil
		}),
	}
}

func newAddCmd(withApp appRunner) *cobra.Command {
	var (
		variant, price, listPrice, name, color, size string
		qty, maxAvailable                            int
	)
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		in := cart.LineInput{
			ProductID: args[0],
			VariantID: variant,
			Quantity:  qty,
			Name:      name,
			Color:     color,
			Size:      size,
		}
		if price != "" {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid --price %q: %w", price, err)
			}
			in.UnitPrice = p
		}
		if listPrice != "" {
			p, err := decimal.NewFromString(listPrice)
			if err != nil {
				return fmt.Errorf("invalid --list-price %q: %w", listPrice, err)
			}
			in.ListPrice = decimal.NewNullDecimal(p)
		}
		if maxAvailable >= 0 {
			in.MaxAvailable = cart.IntPtr(maxAvailable)
		}
		return withApp(func(cmd *cobra.Command, a *app) error {
			if !a.engine.Store().Add(in) {
				return fmt.Errorf("%w: %s needs a variant or is out of stock", errRejected, in.Key())
			}
			line, _ := a.engine.Store().Line(in.Key())
			fmt.Fprintf(cmd.OutOrStdout(), "%s x%d\n", line.Key(), line.Quantity)
			return nil
		})(c, args)
	}
	f := cmd.Flags()
	f.StringVar(&variant, "variant", "", "Variant ID")
	f.IntVar(&qty, "qty", 1, "Quantity to add")
	f.StringVar(&price, "price", "", "Unit price (catalog price when omitted)")
	f.StringVar(&listPrice, "list-price", "", "List price before discount")
	f.IntVar(&maxAvailable, "max", -1, "Stock ceiling (-1 = unknown)")
	f.StringVar(&name, "name", "", "Display name")
	f.StringVar(&color, "color", "", "Display color")
	f.StringVar(&size, "size", "", "Display size")
	return cmd
}

func newSetCmd(withApp appRunner) *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Set a line's quantity; 0 removes it",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		key := cart.KeyOf(args[0], variant)
		if !key.IsValid() {
			return errProductRequired
		}
		return withApp(func(cmd *cobra.Command, a *app) error {
			a.engine.Wait()
			if !a.engine.Store().SetQuantity(key, n) {
				return fmt.Errorf("%w: %s is not in the cart", errRejected, key)
			}
			return nil
		})(c, args)
	}
	cmd.Flags().StringVar(&variant, "variant", "", "Variant ID")
	return cmd
}

func newRemoveCmd(withApp appRunner) *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		key := cart.KeyOf(args[0], variant)
		if !key.IsValid() {
			return errProductRequired
		}
		return withApp(func(cmd *cobra.Command, a *app) error {
			a.engine.Wait()
			if !a.engine.Store().Remove(key) {
				return fmt.Errorf("%w: %s is not in the cart", errRejected, key)
			}
			return nil
		})(c, args)
	}
	cmd.Flags().StringVar(&variant, "variant", "", "Variant ID")
	return cmd
}

func newClearCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ *cobra.Command, a *app) error {
			a.engine.Wait()
			a.engine.Store().Clear()
			return nil
		}),
	}
}

func newLoginCmd(withApp appRunner) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login <user-id>",
		Short: "Sign in; the guest cart is merged into the user's cart",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		userID := strings.TrimSpace(args[0])
		if userID == "" {
			return errors.New("user ID required")
		}
		return withApp(func(cmd *cobra.Command, a *app) error {
			tok := token
			if tok == "" && a.cfg.JWT.Secret != "" {
				issued, _, err := auth.NewJWTService(a.cfg.JWT).GenerateAccessToken(userID)
				if err != nil {
					return err
				}
				tok = issued
			}
			if err := a.setSession(cmd.Context(), session{User: userID, Token: tok}); err != nil {
				return err
			}
			a.engine.Wait()
			a.log.Info("signed in", zap.String("user", userID), zap.Bool("migrated", a.engine.SyncState().Migrated))
			printCart(cmd.OutOrStdout(), a)
			return nil
		})(c, args)
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for the cart service")
	return cmd
}

func newLogoutCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and continue as guest",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			a.engine.Wait()
			if a.session.User == "" {
				return nil
			}
			// Hand the user's cart to the server before leaving the scope
			a.engine.Teardown()
			return a.setSession(cmd.Context(), session{})
		}),
	}
}

func printCart(out io.Writer, a *app) {
	store := a.engine.Store()
	fmt.Fprintf(out, "Cart (%s)\n", store.Scope())
	lines := store.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(out, "  empty")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tVARIANT\tNAME\tQTY\tMAX\tUNIT\tSUBTOTAL")
	for _, l := range lines {
		ceiling := "-"
		if l.MaxAvailable != nil {
			ceiling = strconv.Itoa(*l.MaxAvailable)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			l.ProductID, l.VariantID, l.Name, l.Quantity, ceiling,
			l.UnitPrice.StringFixed(2), l.Subtotal().StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "Items: %d  Total: %s\n", store.ItemCount(), store.Total())
}
