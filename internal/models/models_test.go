package models

import "testing"

func TestConversationParticipants(t *testing.T) {
	conv := &Conversation{ID: 1, UserOneID: 10, UserTwoID: 20}

	if got := conv.OtherParticipant(10); got != 20 {
		t.Errorf("OtherParticipant(10) = %d, want 20", got)
	}
	if got := conv.OtherParticipant(20); got != 10 {
		t.Errorf("OtherParticipant(20) = %d, want 10", got)
	}
	if !conv.HasParticipant(10) || !conv.HasParticipant(20) {
		t.Error("HasParticipant false for a member")
	}
	if conv.HasParticipant(30) {
		t.Error("HasParticipant true for a stranger")
	}
}

func TestMessageBodyVariants(t *testing.T) {
	url := "/uploads/pic.png"

	tests := []struct {
		name string
		msg  Message
		want MessageBody
	}{
		{"text", Message{MessageType: MessageTypeText, Content: "hi"}, TextBody{Content: "hi"}},
		{"image", Message{MessageType: MessageTypeImage, MediaURL: &url}, ImageBody{MediaURL: url}},
		{"image without url", Message{MessageType: MessageTypeImage}, ImageBody{}},
		{"ping", Message{MessageType: MessageTypePing}, PingBody{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Body(); got != tt.want {
				t.Errorf("Body() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
