// Package chromium drives a local Chrome or Chromium over the DevTools
// protocol to host interactive login windows.
//
// Every session gets a throwaway profile directory, so cookies never leak
// between attempts or into the user's own browser profile. Cookie and
// navigation activity of the page is translated into sessioncapture events.
package chromium
