// Package sessionid assigns each assignment a stable conversation session
// identifier of the form session_<unix-millis>_<random>, persisted under
// session_<assignmentID> so restarts resume the same conversation.
package sessionid
