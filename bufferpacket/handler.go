// Package bufferpacket implements the vault-side BufferPacketHandler:
// a per-owner mailbox of users allowed to deposit a message, fronted
// by the same mutex-guarded-map idiom as chunkinfo and taskshandler
// (SPEC_FULL §4.7, grounded on vaultbufferpackethandler.cc's
// ownership/membership checks, with the wire-format/crypto layer left
// to collaborators outside the core per spec §6).
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package bufferpacket

import (
	"sync"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/ids"
)

// Message is one deposited item awaiting delivery.
type Message struct {
	Sender    ids.Id
	Payload   []byte
	Timestamp uint32
}

// Packet is one owner's mailbox.
type Packet struct {
	Owner       ids.Id
	OwnerPubKey string
	Users       []ids.Id
	Messages    []Message
}

// Handler owns every live Packet, keyed by packet name.
type Handler struct {
	mu      sync.Mutex
	packets map[ids.Id]*Packet
	clock   cmn.Clock
}

// New constructs an empty Handler.
func New(clock cmn.Clock) *Handler {
	return &Handler{packets: make(map[ids.Id]*Packet), clock: clock}
}

// HasPacket reports whether name is a live packet.
func (h *Handler) HasPacket(name ids.Id) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, exists := h.packets[name]
	return exists
}

// Create inserts a fresh, empty Packet. Fails PacketExists if name is
// already live.
func (h *Handler) Create(name ids.Id, owner ids.Id, ownerPubKey string, users []ids.Id) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.packets[name]; exists {
		return cmn.NewErr(cmn.PacketExists, "bufferpacket: packet already exists")
	}
	h.packets[name] = &Packet{
		Owner: owner, OwnerPubKey: ownerPubKey,
		Users: append([]ids.Id(nil), users...),
	}
	return nil
}

// Get returns a copy of name's packet.
func (h *Handler) Get(name ids.Id) (Packet, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, exists := h.packets[name]
	if !exists {
		return Packet{}, cmn.NewErr(cmn.PacketNotFound, "bufferpacket: packet not found")
	}
	return clonePacket(p), nil
}

func clonePacket(p *Packet) Packet {
	return Packet{
		Owner: p.Owner, OwnerPubKey: p.OwnerPubKey,
		Users:    append([]ids.Id(nil), p.Users...),
		Messages: append([]Message(nil), p.Messages...),
	}
}

// AddUser appends user to name's allow-list. Only the owner may call
// this (requester must equal Packet.Owner).
func (h *Handler) AddUser(name ids.Id, requester ids.Id, user ids.Id) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, exists := h.packets[name]
	if !exists {
		return cmn.NewErr(cmn.PacketNotFound, "bufferpacket: packet not found")
	}
	if p.Owner != requester {
		return cmn.NewErr(cmn.NotOwner, "bufferpacket: requester does not own this packet")
	}
	for _, u := range p.Users {
		if u == user {
			return nil
		}
	}
	p.Users = append(p.Users, user)
	return nil
}

// RemoveUser removes user from name's allow-list. Only the owner may
// call this.
func (h *Handler) RemoveUser(name ids.Id, requester ids.Id, user ids.Id) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, exists := h.packets[name]
	if !exists {
		return cmn.NewErr(cmn.PacketNotFound, "bufferpacket: packet not found")
	}
	if p.Owner != requester {
		return cmn.NewErr(cmn.NotOwner, "bufferpacket: requester does not own this packet")
	}
	for i, u := range p.Users {
		if u == user {
			p.Users = append(p.Users[:i], p.Users[i+1:]...)
			return nil
		}
	}
	return nil
}

// AddMessage deposits msg into name's packet, provided sender is on
// the allow-list.
func (h *Handler) AddMessage(name ids.Id, sender ids.Id, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, exists := h.packets[name]
	if !exists {
		return cmn.NewErr(cmn.PacketNotFound, "bufferpacket: packet not found")
	}
	allowed := false
	for _, u := range p.Users {
		if u == sender {
			allowed = true
			break
		}
	}
	if !allowed {
		return cmn.NewErr(cmn.NotOwner, "bufferpacket: sender not on allow-list")
	}
	p.Messages = append(p.Messages, Message{Sender: sender, Payload: payload, Timestamp: h.clock.Now()})
	return nil
}

// ClearMessages empties name's message queue, matching
// VaultBufferPacketHandler::ClearMessages.
func (h *Handler) ClearMessages(name ids.Id) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, exists := h.packets[name]
	if !exists {
		return cmn.NewErr(cmn.PacketNotFound, "bufferpacket: packet not found")
	}
	p.Messages = nil
	return nil
}

// Delete removes name entirely. Only the owner may call this.
func (h *Handler) Delete(name ids.Id, requester ids.Id) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, exists := h.packets[name]
	if !exists {
		return cmn.NewErr(cmn.PacketNotFound, "bufferpacket: packet not found")
	}
	if p.Owner != requester {
		return cmn.NewErr(cmn.NotOwner, "bufferpacket: requester does not own this packet")
	}
	delete(h.packets, name)
	return nil
}
