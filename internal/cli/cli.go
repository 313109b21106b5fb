// Package cli dispatches the command surface over the trading service
// and the rates aggregator.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
	"github.com/valutatrade/hub/internal/services/trading"
	"github.com/valutatrade/hub/internal/services/updater"
	"github.com/valutatrade/hub/internal/session"
	"go.uber.org/zap"
)

// App owns the wired services and runs one command per invocation.
type App struct {
	trading    *trading.Service
	aggregator *updater.Aggregator
	scheduler  *updater.Scheduler
	sessions   *session.Store
	logger     *zap.Logger
	out        io.Writer
}

// New builds the CLI application.
func New(tradingSvc *trading.Service, aggregator *updater.Aggregator, scheduler *updater.Scheduler,
	sessions *session.Store, logger *zap.Logger, out io.Writer) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		trading:    tradingSvc,
		aggregator: aggregator,
		scheduler:  scheduler,
		sessions:   sessions,
		logger:     logger,
		out:        out,
	}
}

// Run executes one command and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return 2
	}

	command, rest := args[0], args[1:]

	var err error
	switch command {
	case "update-rates":
		err = a.updateRates(ctx, rest)
	case "show-rates":
		err = a.showRates(rest)
	case "get-rate":
		err = a.getRate(rest)
	case "buy":
		err = a.trade(rest, "buy")
	case "sell":
		err = a.trade(rest, "sell")
	case "show-portfolio":
		err = a.showPortfolio(rest)
	case "currencies":
		fmt.Fprint(a.out, renderCurrencies())
	case "register":
		err = a.register(rest)
	case "login":
		err = a.login(rest)
	case "logout":
		err = a.logout()
	case "refresh":
		err = a.refresh(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
	default:
		fmt.Fprintf(a.out, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	if err != nil {
		fmt.Fprintln(a.out, errorStyle.Render("error: ")+userMessage(err))
		return 1
	}

	return 0
}

const usage = `valutahub commands:
  register   [--username U --password P]   create an account (10000 USD demo balance)
  login      [--username U --password P]   start a session
  logout                                   end the session
  update-rates [--source X]                refresh the rate cache (all or one source)
  show-rates [--pair FROM_TO]              print the cached snapshot
  get-rate   --from A --to B               resolve one rate (direct or inverted)
  buy        --currency C --amount N       buy C for USD
  sell       --currency C --amount N       sell C for USD
  show-portfolio [--base USD]              value all wallets in the base currency
  currencies                               list supported currencies
  refresh    [--interval 5m]               run the periodic rates updater
`

func (a *App) updateRates(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update-rates", flag.ContinueOnError)
	fs.SetOutput(a.out)
	source := fs.String("source", "", "refresh only this provider")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.aggregator.RunUpdate(ctx, *source); err != nil {
		return err
	}

	fmt.Fprintln(a.out, headerStyle.Render("rates updated"))
	return nil
}

func (a *App) showRates(args []string) error {
	fs := flag.NewFlagSet("show-rates", flag.ContinueOnError)
	fs.SetOutput(a.out)
	pair := fs.String("pair", "", "show only this FROM_TO pair")
	if err := fs.Parse(args); err != nil {
		return err
	}

	snap, err := a.trading.Snapshot()
	if err != nil {
		return err
	}

	fmt.Fprint(a.out, renderRates(snap, *pair))
	return nil
}

func (a *App) getRate(args []string) error {
	fs := flag.NewFlagSet("get-rate", flag.ContinueOnError)
	fs.SetOutput(a.out)
	from := fs.String("from", "", "source currency code")
	to := fs.String("to", "", "target currency code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == "" || *to == "" {
		return domain.NewValidationError("--from and --to are required")
	}

	info, err := a.trading.GetRate(*from, *to)
	if err != nil {
		return err
	}

	fmt.Fprint(a.out, renderRateInfo(info))
	return nil
}

func (a *App) trade(args []string, action string) error {
	fs := flag.NewFlagSet(action, flag.ContinueOnError)
	fs.SetOutput(a.out)
	currency := fs.String("currency", "", "currency code to trade")
	amountStr := fs.String("amount", "", "amount to trade")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *currency == "" || *amountStr == "" {
		return domain.NewValidationError("--currency and --amount are required")
	}

	amount, err := decimal.NewFromString(*amountStr)
	if err != nil {
		return domain.NewValidationError("amount must be a number, got %q", *amountStr)
	}

	sess, err := a.requireSession()
	if err != nil {
		return err
	}

	var result *trading.TradeResult
	if action == "buy" {
		result, err = a.trading.Buy(sess.UserID, *currency, amount)
	} else {
		result, err = a.trading.Sell(sess.UserID, *currency, amount)
	}
	if err != nil {
		return err
	}

	fmt.Fprint(a.out, renderTrade(result))
	return nil
}

func (a *App) showPortfolio(args []string) error {
	fs := flag.NewFlagSet("show-portfolio", flag.ContinueOnError)
	fs.SetOutput(a.out)
	base := fs.String("base", "USD", "base currency for valuation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := a.requireSession()
	if err != nil {
		return err
	}

	view, err := a.trading.Portfolio(sess.UserID, *base)
	if err != nil {
		return err
	}

	fmt.Fprint(a.out, renderPortfolio(view))
	return nil
}

func (a *App) register(args []string) error {
	username, password, err := a.credentials("register", args)
	if err != nil {
		return err
	}

	user, err := a.trading.Register(username, password)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, headerStyle.Render(
		fmt.Sprintf("registered user %q (id %d) with a 10000.00 USD demo balance", user.Username, user.ID)))
	fmt.Fprintln(a.out, "run 'valutahub login' to start trading")
	return nil
}

func (a *App) login(args []string) error {
	username, password, err := a.credentials("login", args)
	if err != nil {
		return err
	}

	user, err := a.trading.Login(username, password)
	if err != nil {
		return err
	}

	if err := a.sessions.Save(session.Session{UserID: user.ID, Username: user.Username}); err != nil {
		return err
	}

	fmt.Fprintln(a.out, headerStyle.Render(fmt.Sprintf("logged in as %q", user.Username)))
	return nil
}

func (a *App) logout() error {
	if err := a.sessions.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *App) refresh(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	fs.SetOutput(a.out)
	interval := fs.Duration("interval", 0, "override the configured refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	scheduler := a.scheduler
	if *interval > 0 {
		override, err := updater.NewScheduler(a.aggregator, *interval, a.logger)
		if err != nil {
			return err
		}
		scheduler = override
	}

	return scheduler.Run(ctx)
}

// credentials reads --username/--password flags, falling back to an
// interactive form when either is missing.
func (a *App) credentials(command string, args []string) (string, string, error) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(a.out)
	username := fs.String("username", "", "account name")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}

	if *username != "" && *password != "" {
		return *username, *password, nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(username),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password),
		),
	)
	if err := form.Run(); err != nil {
		return "", "", errors.Wrap(err, "read credentials")
	}

	return *username, *password, nil
}

func (a *App) requireSession() (*session.Session, error) {
	sess, err := a.sessions.Current()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.New("not logged in, run 'valutahub login' first")
	}
	return sess, nil
}

// userMessage folds the error taxonomy into the message shown to the user.
func userMessage(err error) string {
	var (
		validation   *domain.ValidationError
		notFound     *domain.CurrencyNotFoundError
		rateNotFound *domain.RateNotFoundError
		stale        *domain.StaleCacheError
		funds        *domain.InsufficientFundsError
		providerErr  *domain.ProviderRequestError
		storageErr   *domain.StorageError
	)

	switch {
	case errors.As(err, &funds):
		return fmt.Sprintf("insufficient funds: available %s %s, required %s %s",
			domain.FormatAmount(funds.Code, funds.Available), funds.Code,
			domain.FormatAmount(funds.Code, funds.Required), funds.Code)
	case errors.As(err, &stale):
		return fmt.Sprintf("rates cache is older than %s, run 'valutahub update-rates'", stale.TTL)
	case errors.As(err, &rateNotFound):
		return rateNotFound.Error()
	case errors.As(err, &notFound):
		return fmt.Sprintf("unknown currency %q, see 'valutahub currencies'", notFound.Code)
	case errors.Is(err, domain.ErrAggregationFailed):
		return "no provider yielded any rates, the cache was left untouched"
	case errors.As(err, &providerErr):
		return providerErr.Error()
	case errors.As(err, &storageErr):
		return storageErr.Error()
	case errors.As(err, &validation):
		return validation.Reason
	default:
		return err.Error()
	}
}
