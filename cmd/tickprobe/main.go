package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"trading-terminal-go/gateway"
	"trading-terminal-go/market"
)

// tickprobe 连接行情流并把收到的 tick 打到 stdout，用于联调。
func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8000/websocket/ws/stocks", "行情流地址")
	clientID := flag.String("client", "tickprobe", "client_id")
	tokens := flag.String("tokens", "", "逗号分隔的 token 列表")
	flag.Parse()

	list := strings.Split(*tokens, ",")
	cleaned := make([]string, 0, len(list))
	for _, t := range list {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		log.Fatal("need -tokens")
	}

	client := gateway.NewTickStreamClient()
	handle, err := client.Open(*wsURL, *clientID, cleaned, func(batch []market.Tick) {
		for _, tk := range batch {
			fmt.Printf("%s\t%.2f\n", tk.Token, tk.Price)
		}
	})
	if err != nil {
		log.Fatalf("open stream: %v", err)
	}
	defer handle.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-handle.Errors():
		log.Printf("stream error: %v", err)
	}
}
