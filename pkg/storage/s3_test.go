package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVideoKey(t *testing.T) {
	require.Equal(t, "videos/abc/source.mp4", VideoKey("abc", "video/mp4"))
	require.Equal(t, "videos/abc/source.mov", VideoKey("abc", "video/quicktime"))
	require.Equal(t, "videos/abc/source.webm", VideoKey("abc", "VIDEO/WEBM"))
	// Unknown content type falls back to .mp4.
	require.Equal(t, "videos/abc/source.mp4", VideoKey("abc", "application/octet-stream"))
}

func TestThumbnailKey(t *testing.T) {
	require.Equal(t, "thumbnails/abc.jpg", ThumbnailKey("abc", "image/jpeg"))
	require.Equal(t, "thumbnails/abc.png", ThumbnailKey("abc", "image/png"))
	require.Equal(t, "thumbnails/abc.webp", ThumbnailKey("abc", "image/webp"))
	require.Equal(t, "thumbnails/abc.jpg", ThumbnailKey("abc", "text/plain"))
}

func TestValidVideoType(t *testing.T) {
	require.True(t, ValidVideoType("video/mp4"))
	require.True(t, ValidVideoType("Video/QuickTime"))
	require.False(t, ValidVideoType("video/x-msvideo"))
	require.False(t, ValidVideoType(""))
}

func TestValidImageType(t *testing.T) {
	require.True(t, ValidImageType("image/jpeg"))
	require.True(t, ValidImageType("IMAGE/PNG"))
	require.False(t, ValidImageType("image/gif"))
	require.False(t, ValidImageType("application/pdf"))
}
