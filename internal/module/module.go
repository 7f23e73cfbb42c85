// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package module implements the module runtime from spec.md §4.H,
// the central abstraction of the whole system: the per-module
// WidgetContext, the ModuleUpdateEvent sum type, and the dedicated
// per-instance router task that turns controller events into
// broadcasted updates and popup-manager calls.
//
// spec.md §9 chooses polymorphism shape (a): an interface with
// associated send/receive types. Go has no associated types, so this
// is expressed as a generic Module[TSend, TReceive] interface; the
// type-erasure that hides TSend/TReceive behind a concrete widget
// handle lives one layer up, in barassembler.Kind, which wraps New
// in a closure over a module's concrete types.
package module

import (
	"github.com/ferrobar/ferrobar/internal/chanx"
	"github.com/ferrobar/ferrobar/internal/client"
	"github.com/ferrobar/ferrobar/internal/popup"
	"github.com/ferrobar/ferrobar/internal/widget"
)

// UpdateKind identifies the shape of a ModuleUpdateEvent.
type UpdateKind int

// The five ModuleUpdateEvent variants (spec.md §4.H).
const (
	Update UpdateKind = iota
	TogglePopup
	OpenPopup
	OpenPopupAt
	ClosePopup
)

// UpdateEvent[T] is the sum type controllers and widgets send into a
// module's router (spec.md §4.H "ModuleUpdateEvent<T>").
type UpdateEvent[T any] struct {
	Kind     UpdateKind
	Value    T               // Update
	ButtonID uint64          // TogglePopup, OpenPopup
	Geometry widget.Geometry // OpenPopupAt
}

// UpdateValue builds an Update(v) event.
func UpdateValue[T any](v T) UpdateEvent[T] { return UpdateEvent[T]{Kind: Update, Value: v} }

// TogglePopupEvent builds a TogglePopup(buttonID) event.
func TogglePopupEvent[T any](buttonID uint64) UpdateEvent[T] {
	return UpdateEvent[T]{Kind: TogglePopup, ButtonID: buttonID}
}

// OpenPopupEvent builds an OpenPopup(buttonID) event.
func OpenPopupEvent[T any](buttonID uint64) UpdateEvent[T] {
	return UpdateEvent[T]{Kind: OpenPopup, ButtonID: buttonID}
}

// OpenPopupAtEvent builds an OpenPopupAt(geometry) event.
func OpenPopupAtEvent[T any](geom widget.Geometry) UpdateEvent[T] {
	return UpdateEvent[T]{Kind: OpenPopupAt, Geometry: geom}
}

// ClosePopupEvent builds a ClosePopup event.
func ClosePopupEvent[T any]() UpdateEvent[T] { return UpdateEvent[T]{Kind: ClosePopup} }

// Context is the per-module handle passed to both halves of a Module
// (spec.md §4.H "WidgetContext"). TSend is the controller's update
// payload type; TReceive is the UI's command payload type.
type Context[TSend, TReceive any] struct {
	// ID is the module's process-wide unique identity (spec.md §3).
	ID uint64
	// ButtonID is the identity assigned to this module's primary
	// trigger button at construction time (spec.md §4.H "Button→popup
	// identity"). Modules with multiple buttons allocate additional
	// ids from widget.NewID() themselves.
	ButtonID uint64

	tx    *chanx.Sender[UpdateEvent[TSend]]
	broad *chanx.Broadcaster[TSend]

	// ControllerTx is the UI-thread sender for TReceive commands; the
	// controller's spawn_controller takes ownership of its Recv side.
	ControllerTx *chanx.Sender[TReceive]

	// Clients is the shared client registry (spec.md §4.H "cross-cutting
	// handle for service access").
	Clients *client.Registry
	// PopupRegistry is the bar's popup manager, owned by the bar and
	// handed to modules non-owning (spec.md §9).
	PopupRegistry *popup.Registry
}

// Subscribe returns a fresh broadcast subscription to this module's
// TSend updates (spec.md §4.H "context.subscribe()").
func (c *Context[TSend, TReceive]) Subscribe() *chanx.Subscription[TSend] {
	return c.broad.Subscribe(chanx.DefaultCapacity)
}

// Tx returns the sender side of the module's event channel, the
// handle spawn_controller writes Update/Popup events into (spec.md
// §4.H "context.tx").
func (c *Context[TSend, TReceive]) Tx() *chanx.Sender[UpdateEvent[TSend]] { return c.tx }

// Parts is what a module's UI factory returns (spec.md §4.H
// "ModuleParts"): the display widget and, if the module has rich
// interactive content, its popup contents.
type Parts struct {
	Widget       widget.Handle
	PopupContent widget.Handle
	Triggers     []widget.Button
}

// Module is the per-module-kind contract (spec.md §4.H "Module
// trait"). A concrete module kind implements this for its own
// TSend/TReceive pair.
type Module[TSend, TReceive any] interface {
	// SpawnController starts the controller task(s) that read service
	// clients and write into ctx.Tx(). Runs off the UI thread. Takes
	// ownership of the receive side of controller commands via
	// ctx.ControllerTx - implementations read from
	// ctx.ControllerTx.Recv() directly since Sender exposes it.
	SpawnController(ctx *Context[TSend, TReceive]) error
	// IntoWidget runs on the UI thread: constructs the module's
	// display widget (and optional popup), wired to ctx.Subscribe()
	// and ctx.ControllerTx.
	IntoWidget(ctx *Context[TSend, TReceive]) (Parts, error)
}

// Instance bundles a running module's context, router, and resulting
// widget parts - what the bar assembler keeps per module.
type Instance[TSend, TReceive any] struct {
	Context *Context[TSend, TReceive]
	Parts   Parts
	router  *router[TSend]
}

// New constructs a module instance: allocates its context and router,
// runs SpawnController and IntoWidget, and starts the router task.
// The caller (the bar assembler) is responsible for registering
// Parts.PopupContent with popups via popup.Registry.RegisterContent.
func New[TSend, TReceive any](
	id uint64,
	m Module[TSend, TReceive],
	popups *popup.Registry,
	clients *client.Registry,
) (*Instance[TSend, TReceive], error) {
	events := chanx.NewSender[UpdateEvent[TSend]](chanx.DefaultCapacity)
	broad := chanx.NewBroadcaster[TSend]()
	controllerTx := chanx.NewSender[TReceive](chanx.DefaultCapacity)

	ctx := &Context[TSend, TReceive]{
		ID:            id,
		ButtonID:      widget.NewID(),
		tx:            events,
		broad:         broad,
		ControllerTx:  controllerTx,
		Clients:       clients,
		PopupRegistry: popups,
	}

	r := &router[TSend]{id: id, events: events.Recv(), broad: broad, popups: popups}
	go r.run()

	if err := m.SpawnController(ctx); err != nil {
		return nil, err
	}
	parts, err := m.IntoWidget(ctx)
	if err != nil {
		return nil, err
	}

	return &Instance[TSend, TReceive]{Context: ctx, Parts: parts, router: r}, nil
}

// Close stops the module's router and closes its channels,
// cooperatively cancelling the controller task (spec.md §3 "closing
// the module aborts that task via cooperative cancellation via
// channel closure").
func (i *Instance[TSend, TReceive]) Close() {
	i.Context.tx.Close()
	i.Context.ControllerTx.Close()
	i.Context.broad.Close()
}

// router is the dedicated per-module-instance task described in
// spec.md §4.H "Per-module router".
type router[TSend any] struct {
	id     uint64
	events <-chan UpdateEvent[TSend]
	broad  *chanx.Broadcaster[TSend]
	popups *popup.Registry
}

func (r *router[TSend]) run() {
	for ev := range r.events {
		switch ev.Kind {
		case Update:
			r.broad.Publish(ev.Value)
		case TogglePopup:
			id, btn, ok := r.popups.CurrentIDAndButton()
			if ok && id == r.id && btn == ev.ButtonID {
				r.popups.Hide()
			} else {
				r.popups.Show(r.id, ev.ButtonID)
			}
		case OpenPopup:
			r.popups.Hide()
			r.popups.Show(r.id, ev.ButtonID)
		case OpenPopupAt:
			r.popups.Hide()
			r.popups.ShowAt(r.id, ev.Geometry)
		case ClosePopup:
			r.popups.Hide()
		}
	}
}
