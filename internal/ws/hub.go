// Package ws fans notification payloads out to WebSocket and Server-Sent
// Events subscribers.
package ws

import "sync"

// sendQueueSize bounds the payloads buffered per subscriber. A subscriber
// whose queue is full when a broadcast arrives is evicted.
const sendQueueSize = 16

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages stream subscriptions by topic. Broadcast never waits on a
// subscriber's network writes; each subscriber drains its own queue.
type Hub struct {
	clients   map[string]map[Subscriber]*peer
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	count     chan countRequest
	done      chan struct{}
	closeOnce sync.Once
}

// message couples payload with topic.
type message struct {
	topic   string
	payload []byte
}

// subscription defines register/unregister requests.
type subscription struct {
	topic  string
	client Subscriber
}

type countRequest struct {
	topic string
	reply chan int
}

// peer owns the outbound queue of one subscriber.
type peer struct {
	sub   Subscriber
	queue chan []byte
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]*peer),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
		count:     make(chan countRequest),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for _, peers := range h.clients {
				for _, p := range peers {
					close(p.queue)
				}
			}
			h.clients = nil
			return
		case sub := <-h.register:
			peers, ok := h.clients[sub.topic]
			if !ok {
				peers = make(map[Subscriber]*peer)
				h.clients[sub.topic] = peers
			}
			if _, dup := peers[sub.client]; dup {
				continue
			}
			p := &peer{sub: sub.client, queue: make(chan []byte, sendQueueSize)}
			peers[sub.client] = p
			go h.write(sub.topic, p)
		case sub := <-h.unreg:
			h.remove(sub.topic, sub.client)
		case msg := <-h.broadcast:
			for c, p := range h.clients[msg.topic] {
				select {
				case p.queue <- msg.payload:
				default:
					// Too slow to keep up; its writer closes it once the
					// stalled write returns.
					h.remove(msg.topic, c)
				}
			}
		case req := <-h.count:
			req.reply <- len(h.clients[req.topic])
		}
	}
}

// remove drops a subscriber and ends its writer. Runs on the hub goroutine.
func (h *Hub) remove(topic string, client Subscriber) {
	peers, ok := h.clients[topic]
	if !ok {
		return
	}
	if p, ok := peers[client]; ok {
		close(p.queue)
		delete(peers, client)
	}
	if len(peers) == 0 {
		delete(h.clients, topic)
	}
}

// write delivers queued payloads until the queue is closed or a send fails.
func (h *Hub) write(topic string, p *peer) {
	defer p.sub.Close()
	for payload := range p.queue {
		if err := p.sub.Send(payload); err != nil {
			h.Unregister(topic, p.sub)
			return
		}
	}
}

// Register adds a client to a topic. Registering on a closed hub closes the client.
func (h *Hub) Register(topic string, client Subscriber) {
	select {
	case h.register <- subscription{topic: topic, client: client}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client and closes it.
func (h *Hub) Unregister(topic string, client Subscriber) {
	select {
	case h.unreg <- subscription{topic: topic, client: client}:
	case <-h.done:
	}
}

// Broadcast queues payload for all topic clients.
func (h *Hub) Broadcast(topic string, payload []byte) {
	select {
	case h.broadcast <- message{topic: topic, payload: payload}:
	case <-h.done:
	}
}

// Subscribers reports how many clients are registered on a topic.
func (h *Hub) Subscribers(topic string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{topic: topic, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Close disconnects every client and stops the hub.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
