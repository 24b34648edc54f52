package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"trading-terminal-go/gateway"
	"trading-terminal-go/internal/feed"
	"trading-terminal-go/market"
	"trading-terminal-go/portfolio"
	"trading-terminal-go/reconcile"
	"trading-terminal-go/view"
)

// portfolio_report 一次性拉取全部视图，可选接一段行情后对账并输出文本报告。
func main() {
	baseURL := flag.String("base", "http://127.0.0.1:8000", "REST 基地址")
	wsURL := flag.String("ws", "", "行情流地址；留空则只给出 pending 行")
	userID := flag.String("user", "", "user_id")
	wait := flag.Duration("wait", 2*time.Second, "接行情的等待时长")
	flag.Parse()

	if *userID == "" {
		log.Fatal("need -user")
	}

	client := &gateway.PortfolioRESTClient{
		BaseURL:    *baseURL,
		UserID:     *userID,
		HTTPClient: gateway.NewDefaultHTTPClient(),
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelCtx()

	store := portfolio.NewStore()
	for _, v := range portfolio.Views() {
		records, err := client.FetchFor(v)(ctx)
		if err != nil {
			log.Printf("fetch %s: %v", v, err)
		}
		store.ApplyResult(v, records, err)
	}

	pub := market.NewPublisher()
	table := market.NewTable(pub)
	if *wsURL != "" {
		tokens := store.AllTokens()
		if len(tokens) > 0 {
			mgr := feed.NewManager(feed.Config{URL: *wsURL, ClientID: *userID}, table)
			mgr.Start(tokens)
			time.Sleep(*wait)
			snapshot := table.Snapshot()
			mgr.Stop()
			// Stop 会清空表，报告用停表前的快照
			printReport(store, snapshot)
			return
		}
	}
	printReport(store, table.Snapshot())
}

func printReport(store *portfolio.Store, prices map[string]market.PriceRecord) {
	active := reconcile.Rows(store.Snapshot(portfolio.ViewActive).Records, prices)
	closed := reconcile.Rows(store.Snapshot(portfolio.ViewClosed).Records, prices)
	summary := view.Summarize(active, closed)

	fmt.Printf("current value : %.2f\n", summary.CurrentValue)
	fmt.Printf("running p/l   : %.2f\n", summary.RunningPnl)
	fmt.Printf("closed p/l    : %.2f\n\n", summary.TotalClosedPnl)

	for _, row := range view.ActiveRows(active) {
		fmt.Printf("%-12s %-4s qty=%-6d atp=%-10s ltp=%-10s pnl=%s\n",
			row.StockName, row.OrderType, row.Qty, row.ATP, row.LTP, row.GainLoss)
	}
	rejected := reconcile.Rows(store.Snapshot(portfolio.ViewRejected).Records, prices)
	for _, row := range view.RejectedRows(rejected) {
		fmt.Printf("%-12s %-4s qty=%-6d rejected=%s\n",
			row.StockName, row.OrderType, row.Qty, row.RejectedTime)
	}
	options := reconcile.Rows(store.Snapshot(portfolio.ViewOptions).Records, prices)
	for _, row := range view.OptionRows(options) {
		fmt.Printf("%-20s %-2s qty=%-6d entry=%-10s ltp=%-10s pnl=%s\n",
			row.OptionSymbol, row.OptionType, row.Qty, row.EntryLTP, row.CurrentLTP, row.Profit)
	}
	closedOptions := reconcile.Rows(store.Snapshot(portfolio.ViewOptionsClosed).Records, prices)
	for _, row := range view.ClosedOptionRows(closedOptions) {
		fmt.Printf("%-28s %-2s qty=%-6d entry=%-10s exit=%-10s pnl=%s\n",
			row.StockName, row.OptionType, row.Qty, row.EntryLTP, row.ExitLTP, row.TotalProfit)
	}
}
