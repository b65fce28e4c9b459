package webhook

import "testing"

func TestBulletinRequest(t *testing.T) {
	tests := []struct {
		text      string
		wantOK    bool
		wantClass string
	}{
		{"授業変更", true, ""},
		{"授業変更情報", true, ""},
		{"1-2の授業変更", true, "1-2"},
		{"授業変更 3E", true, "3E"},
		{"２年１組の授業変更を教えて", true, "２年１組"},
		{"1-2 月曜の時間割", false, ""},
		{"奨学金について", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			class, ok := bulletinRequest(tt.text)
			if ok != tt.wantOK || class != tt.wantClass {
				t.Errorf("bulletinRequest(%q) = (%q, %v), want (%q, %v)", tt.text, class, ok, tt.wantClass, tt.wantOK)
			}
		})
	}
}
