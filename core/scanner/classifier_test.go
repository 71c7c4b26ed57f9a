package scanner

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		want FileKind
	}{
		{"song.mp3", KindAudio},
		{"song.MP3", KindAudio},
		{"nested/dir/track.flac", KindAudio},
		{"track.wav", KindAudio},
		{"track.ogg", KindAudio},
		{"track.m4a", KindAudio},
		{"cover.jpg", KindImage},
		{"cover.JPEG", KindImage},
		{"cover.png", KindImage},
		{"lyrics.lrc", KindText},
		{"notes.txt", KindText},
		{"movie.mkv", KindUnrecognized},
		{"archive.zip", KindUnrecognized},
		{"noextension", KindUnrecognized},
		{"", KindUnrecognized},
	}

	for _, tc := range cases {
		if got := Classify(tc.path); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
