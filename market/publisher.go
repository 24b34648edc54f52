package market

import "sync"

// Publisher 一个轻量事件分发器：向订阅者广播本批更新过的 token。
// 发送非阻塞，慢消费者丢弃中间批次（下游总是重读表内最新值）。
type Publisher struct {
	mu   sync.Mutex
	subs []chan []string
}

func NewPublisher() *Publisher {
	return &Publisher{subs: make([]chan []string, 0)}
}

// SubscribeUpdates 返回接收更新 token 批次的通道。
func (p *Publisher) SubscribeUpdates() <-chan []string {
	ch := make(chan []string, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

func (p *Publisher) PublishUpdate(tokens []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- tokens:
		default:
		}
	}
}
