package updater

import "github.com/roster-land/rosterd/download"

type EventType = string

const EventTypeProgress EventType = "progress"
const EventTypeCompleted EventType = "completed"

// DownloadResult is the terminal notification of a download attempt.
type DownloadResult struct {
	Success           bool   `json:"success"`
	DownloadPath      string `json:"downloadPath,omitempty"`
	Verified          bool   `json:"verified"`
	AlreadyDownloaded bool   `json:"alreadyDownloaded"`
	Error             string `json:"error,omitempty"`
}

// Event is pushed to subscribers while a download runs and once when it
// finishes. Id ties all events of one transfer together.
type Event struct {
	Id       string             `json:"id"`
	Type     EventType          `json:"type"`
	Progress *download.Progress `json:"progress,omitempty"`
	Result   *DownloadResult    `json:"result,omitempty"`
}

// EventsClient receives pushed updater events until cancelled.
type EventsClient struct {
	Events     chan *Event
	Id         uint32
	cancelChan chan struct{}
	updater    *Updater
}

// SubscribeEvents registers a new event subscriber.
func (u *Updater) SubscribeEvents() *EventsClient {
	client := &EventsClient{
		Events:     make(chan *Event, 16),
		cancelChan: make(chan struct{}),
		updater:    u,
	}

	u.eventClientMtx.Lock()
	client.Id = u.nextEventClientID
	u.nextEventClientID++
	u.eventClients[client.Id] = client
	u.eventClientMtx.Unlock()

	return client
}

func (c *EventsClient) Cancel() {
	c.updater.eventClientMtx.Lock()
	delete(c.updater.eventClients, c.Id)
	c.updater.eventClientMtx.Unlock()

	close(c.cancelChan)
}

// publishEvent fans an event out to all subscribers. Slow subscribers drop
// events instead of stalling the transfer.
func (u *Updater) publishEvent(event *Event) {
	u.eventClientMtx.Lock()
	defer u.eventClientMtx.Unlock()

	for _, client := range u.eventClients {
		select {
		case client.Events <- event:
		default:
			u.log.Warnf("Dropping event for slow subscriber %d", client.Id)
		}
	}
}
