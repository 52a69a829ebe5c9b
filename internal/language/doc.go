// Package language normalizes the language codes that flow through
// acquisition: user requests ("auto", "English", "pt-BR"), caption track
// codes and yt-dlp subtitle selectors. Cache keys and metadata always carry
// the normalized form.
package language
