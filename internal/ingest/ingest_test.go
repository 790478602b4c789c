package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/nerrad567/devicehub/internal/device"
	"github.com/nerrad567/devicehub/internal/egress"
	"github.com/nerrad567/devicehub/internal/infrastructure/database"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/infrastructure/mqtt"
	_ "github.com/nerrad567/devicehub/migrations"
)

const testTopic = "data.produced"

type fixture struct {
	devices *device.SQLRepository
	data    *device.SQLDataRepository
	svc     *device.DataService
	dev     *device.Device
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "ingest.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	devices := device.NewSQLRepository(db)
	data := device.NewSQLDataRepository(db)
	dev, err := device.NewRegistrationService(devices).Register(ctx, "10.0.0.5", device.Metadata{})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	return &fixture{
		devices: devices,
		data:    data,
		svc:     device.NewDataService(devices, data),
		dev:     dev,
	}
}

// waitForRows polls until the store holds want rows or the deadline passes.
func (f *fixture) waitForRows(t *testing.T, want int) []device.DeviceData {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rows, err := f.data.Find(context.Background(), device.DataFilter{})
		if err != nil {
			t.Fatalf("Find() error = %v", err)
		}
		if len(rows) >= want || time.Now().After(deadline) {
			return rows
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    DataMessage
		wantErr bool
	}{
		{
			name:    "string value",
			payload: `{"device_id":"d","name":"temp","value":"21","unit":"C"}`,
			want:    DataMessage{DeviceID: "d", Name: "temp", Value: "21", Unit: "C"},
		},
		{
			name:    "numeric value keeps text",
			payload: `{"device_id":"d","name":"temp","value":21.5}`,
			want:    DataMessage{DeviceID: "d", Name: "temp", Value: "21.5"},
		},
		{
			name:    "boolean value",
			payload: `{"device_id":"d","name":"door","value":true}`,
			want:    DataMessage{DeviceID: "d", Name: "door", Value: "true"},
		},
		{name: "not json", payload: `temp=21`, wantErr: true},
		{name: "object value", payload: `{"device_id":"d","name":"x","value":{}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, device.ErrInvalidInput) {
					t.Errorf("Decode() error = %v, want ErrInvalidInput", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type fakeAdder struct {
	err   error
	calls int
	got   []string
}

func (f *fakeAdder) Add(ctx context.Context, deviceID, name, value, unit string) (*device.DeviceData, error) {
	f.calls++
	f.got = []string{deviceID, name, value, unit}
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("no deadline on context")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &device.DeviceData{ID: "x", DeviceID: deviceID, Name: name, Value: value, Unit: unit}, nil
}

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		addErr    error
		wantCalls int
		wantErr   bool
	}{
		{"stored", `{"device_id":"d","name":"temp","value":22,"unit":"C"}`, nil, 1, false},
		{"undecodable", `{`, nil, 0, true},
		{"unknown device", `{"device_id":"d","name":"temp","value":"1"}`, device.ErrDeviceNotFound, 1, true},
		{"store failure", `{"device_id":"d","name":"temp","value":"1"}`, device.ErrDataCreationFailed, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adder := &fakeAdder{err: tt.addErr}
			p := NewProcessor(adder, logging.Discard(), time.Second)

			err := p.Process(context.Background(), "test", []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("Process() error = %v, wantErr %v", err, tt.wantErr)
			}
			if adder.calls != tt.wantCalls {
				t.Errorf("Add called %d times, want %d", adder.calls, tt.wantCalls)
			}
		})
	}
}

func TestProcessor_PassesLiteralValue(t *testing.T) {
	adder := &fakeAdder{}
	p := NewProcessor(adder, nil, 0)

	if err := p.Process(context.Background(), "test", []byte(`{"device_id":"d","name":"temp","value":21.50,"unit":"C"}`)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := []string{"d", "temp", "21.50", "C"}
	for i := range want {
		if adder.got[i] != want[i] {
			t.Errorf("Add() arg %d = %q, want %q", i, adder.got[i], want[i])
		}
	}
}

// startAMQPConsumer runs a consumer on an in-memory pub/sub and returns
// the publisher side.
func startAMQPConsumer(t *testing.T, f *fixture) message.Publisher {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	consumer, err := NewAMQPConsumer(pubSub, testTopic, NewProcessor(f.svc, logging.Discard(), time.Second), logging.Discard())
	if err != nil {
		t.Fatalf("NewAMQPConsumer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Run(ctx); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		pubSub.Close()
	})

	select {
	case <-consumer.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not start")
	}
	return pubSub
}

func publish(t *testing.T, pub message.Publisher, payload string) {
	t.Helper()
	if err := pub.Publish(testTopic, message.NewMessage(watermill.NewUUID(), []byte(payload))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestAMQPConsumer_StoresData(t *testing.T) {
	f := newFixture(t)
	pub := startAMQPConsumer(t, f)

	publish(t, pub, `{"device_id":"`+f.dev.ID+`","name":"temp","value":22,"unit":"C"}`)

	rows := f.waitForRows(t, 1)
	if len(rows) != 1 {
		t.Fatalf("store holds %d rows, want 1", len(rows))
	}
	if rows[0].Value != "22" || rows[0].Unit != "C" || rows[0].DeviceID != f.dev.ID {
		t.Errorf("stored row = %+v", rows[0])
	}
}

func TestAMQPConsumer_DropsBadMessagesAndContinues(t *testing.T) {
	f := newFixture(t)
	pub := startAMQPConsumer(t, f)

	publish(t, pub, `not json`)
	publish(t, pub, `{"device_id":"not-a-uuid","name":"temp","value":"1"}`)
	publish(t, pub, `{"device_id":"01890a5d-ac96-774b-bcce-b302099a8057","name":"temp","value":"1"}`)
	publish(t, pub, `{"device_id":"`+f.dev.ID+`","name":"temp","value":""}`)
	publish(t, pub, `{"device_id":"`+f.dev.ID+`","name":"marker","value":"ok"}`)

	rows := f.waitForRows(t, 1)
	if len(rows) != 1 || rows[0].Name != "marker" {
		t.Fatalf("store holds %+v, want only the marker row", rows)
	}

	// Delivery order is not guaranteed; let any stragglers finish.
	time.Sleep(100 * time.Millisecond)
	rows, err := f.data.Find(context.Background(), device.DataFilter{})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("store holds %d rows after drops, want 1", len(rows))
	}
}

type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
	subErr   error
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if f.subErr != nil {
		return f.subErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]mqtt.MessageHandler)
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeSubscriber) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no handler for %s", topic)
	}
	if err := h(topic, []byte(payload)); err != nil {
		t.Errorf("handler returned %v, want nil", err)
	}
}

func TestMQTTConsumer(t *testing.T) {
	f := newFixture(t)
	sub := &fakeSubscriber{}
	topic := mqtt.Topics{}.DataIn("data/in")

	c := NewMQTTConsumer(sub, topic, 1, NewProcessor(f.svc, logging.Discard(), time.Second))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if c.Topic() != "devicehub/data/in" {
		t.Errorf("Topic() = %q", c.Topic())
	}

	sub.deliver(t, topic, `{"device_id":"`+f.dev.ID+`","name":"temp","value":"19.5"}`)
	sub.deliver(t, topic, `{{{`)
	sub.deliver(t, topic, `{"device_id":"01890a5d-ac96-774b-bcce-b302099a8057","name":"temp","value":"1"}`)

	rows := f.waitForRows(t, 1)
	if len(rows) != 1 || rows[0].Value != "19.5" {
		t.Errorf("store holds %+v, want one row 19.5", rows)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(sub.handlers) != 0 {
		t.Error("Stop() did not unsubscribe")
	}
}

// stalledPublisher never acknowledges until released.
type stalledPublisher struct{ release chan struct{} }

func (p *stalledPublisher) Publish(string, []byte, byte, bool) error {
	<-p.release
	return nil
}

// Republishing a reading over MQTT must not hold up the handler that
// ingested it.
func TestMQTTConsumer_StalledEgressDoesNotBlockIngest(t *testing.T) {
	f := newFixture(t)
	pub := &stalledPublisher{release: make(chan struct{})}
	defer close(pub.release)

	sink := egress.NewMQTTSink(pub, mqtt.Topics{}, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)
	f.svc.OnAdded(sink.Handle)

	sub := &fakeSubscriber{}
	topic := mqtt.Topics{}.DataIn("data/in")
	c := NewMQTTConsumer(sub, topic, 1, NewProcessor(f.svc, logging.Discard(), time.Second))
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	start := time.Now()
	for range 3 {
		sub.deliver(t, topic, `{"device_id":"`+f.dev.ID+`","name":"temp","value":"1"}`)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("three deliveries took %v with a stalled publisher", elapsed)
	}
	if rows := f.waitForRows(t, 3); len(rows) != 3 {
		t.Errorf("store holds %d rows, want 3", len(rows))
	}
}

func TestMQTTConsumer_StartError(t *testing.T) {
	sub := &fakeSubscriber{subErr: mqtt.ErrNotConnected}
	c := NewMQTTConsumer(sub, "devicehub/data/in", 1, NewProcessor(&fakeAdder{}, nil, 0))

	if err := c.Start(context.Background()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}
