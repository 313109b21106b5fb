package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
	"github.com/valutatrade/hub/internal/services/trading"
)

var (
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 1).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Faint(true)
)

func renderRates(snap domain.Snapshot, pairFilter string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("CACHED RATES"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("last refresh: %s", snap.LastRefresh.Format(time.RFC3339))))
	b.WriteString("\n\n")

	keys := make([]string, 0, len(snap.Pairs))
	for key := range snap.Pairs {
		if pairFilter != "" && key != pairFilter {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		b.WriteString("no rates cached\n")
		return b.String()
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %-18s %-22s %s", "PAIR", "RATE", "UPDATED", "SOURCE")))
	b.WriteString("\n")
	for _, key := range keys {
		entry := snap.Pairs[key]
		b.WriteString(fmt.Sprintf("%-12s %-18s %-22s %s\n",
			key,
			entry.Rate.String(),
			entry.UpdatedAt.Format(time.RFC3339),
			entry.Source))
	}

	return b.String()
}

func renderRateInfo(info domain.RateInfo) string {
	return fmt.Sprintf("%s = %s  %s\n",
		headerStyle.Render(info.Pair),
		info.Rate.String(),
		dimStyle.Render(fmt.Sprintf("(source %s, updated %s)", info.Source, info.UpdatedAt.Format(time.RFC3339))))
}

func renderPortfolio(view *trading.PortfolioView) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("PORTFOLIO OF USER %d", view.UserID)))
	b.WriteString("\n\n")

	if len(view.Rows) == 0 {
		b.WriteString("portfolio is empty\n")
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %s", "CURRENCY", "BALANCE")))
		b.WriteString("\n")
		for _, row := range view.Rows {
			b.WriteString(fmt.Sprintf("%-10s %s\n", row.Currency, row.BalanceDisplay))
		}
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render(
		fmt.Sprintf("TOTAL: %s %s", domain.FormatAmount(view.Base, view.Total), view.Base)))
	b.WriteString("\n")

	return b.String()
}

func renderTrade(result *trading.TradeResult) string {
	var b strings.Builder
	verb := "bought"
	if result.Action == "sell" {
		verb = "sold"
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s %s %s @ %s %s",
		verb,
		result.Amount.String(),
		result.CurrencyCode,
		result.Rate.String(),
		result.Base)))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s total: %s %s\n",
		result.Base,
		domain.FormatAmount(result.Base, result.QuoteAmount),
		result.Base))

	codes := make([]string, 0, len(result.WalletsAfter))
	for code := range result.WalletsAfter {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		before := result.WalletsBefore[code]
		if before == "" {
			before = domain.FormatAmount(code, decimal.Zero)
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s: %s -> %s",
			code, before, result.WalletsAfter[code])))
		b.WriteString("\n")
	}

	return b.String()
}

func renderCurrencies() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("SUPPORTED CURRENCIES"))
	b.WriteString("\n\n")
	for _, c := range domain.ListCurrencies() {
		b.WriteString(c.DisplayInfo())
		b.WriteString("\n")
	}
	return b.String()
}
