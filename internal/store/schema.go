package store

// schema is applied on every Open; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    google_id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_tokens (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL DEFAULT '',
    token_type TEXT NOT NULL DEFAULT '',
    expires_at TEXT NOT NULL,
    scope TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    time_zone TEXT NOT NULL DEFAULT '',
    reminder_minutes INTEGER NOT NULL DEFAULT 30,
    resume_url TEXT NOT NULL DEFAULT '',
    job_role TEXT NOT NULL DEFAULT '',
    target_companies TEXT NOT NULL DEFAULT '[]',
    company_name TEXT NOT NULL DEFAULT '',
    product_description TEXT NOT NULL DEFAULT '',
    sales_pain_points TEXT NOT NULL DEFAULT '',
    sales_targets TEXT NOT NULL DEFAULT '',
    preferred_meeting_types TEXT NOT NULL DEFAULT '[]',
    notification_preference TEXT NOT NULL DEFAULT 'push',
    notes TEXT NOT NULL DEFAULT '',
    profile_data TEXT NOT NULL DEFAULT 'null',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS calendar_events (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    google_event_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    start_time TEXT NOT NULL,
    end_time TEXT NOT NULL,
    location TEXT NOT NULL DEFAULT '',
    meeting_link TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'confirmed',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (user_id, google_event_id)
);
CREATE INDEX IF NOT EXISTS idx_calendar_events_user_start ON calendar_events(user_id, start_time);

CREATE TABLE IF NOT EXISTS meeting_participants (
    id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL REFERENCES calendar_events(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    is_organizer INTEGER NOT NULL DEFAULT 0,
    response_status TEXT NOT NULL DEFAULT '',
    UNIQUE (event_id, email)
);

CREATE TABLE IF NOT EXISTS email_threads (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    gmail_thread_id TEXT NOT NULL,
    subject TEXT NOT NULL,
    last_message_date TEXT NOT NULL,
    message_count INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (user_id, gmail_thread_id)
);
CREATE INDEX IF NOT EXISTS idx_email_threads_user_last ON email_threads(user_id, last_message_date);

CREATE TABLE IF NOT EXISTS email_thread_participants (
    thread_id TEXT NOT NULL REFERENCES email_threads(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    PRIMARY KEY (thread_id, email)
);
CREATE INDEX IF NOT EXISTS idx_email_thread_participants_email ON email_thread_participants(email);

CREATE TABLE IF NOT EXISTS email_messages (
    id TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL REFERENCES email_threads(id) ON DELETE CASCADE,
    gmail_message_id TEXT NOT NULL UNIQUE,
    from_email TEXT NOT NULL DEFAULT '',
    to_emails TEXT NOT NULL DEFAULT '[]',
    subject TEXT NOT NULL DEFAULT '',
    body_text TEXT NOT NULL DEFAULT '',
    body_html TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_email_messages_thread_date ON email_messages(thread_id, date);

CREATE TABLE IF NOT EXISTS meeting_email_links (
    id TEXT PRIMARY KEY,
    meeting_id TEXT NOT NULL REFERENCES calendar_events(id) ON DELETE CASCADE,
    thread_id TEXT NOT NULL REFERENCES email_threads(id) ON DELETE CASCADE,
    created_at TEXT NOT NULL,
    UNIQUE (meeting_id, thread_id)
);

CREATE TABLE IF NOT EXISTS talking_points (
    id TEXT PRIMARY KEY,
    meeting_id TEXT NOT NULL UNIQUE REFERENCES calendar_events(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    points TEXT NOT NULL DEFAULT '[]',
    ai_model TEXT NOT NULL,
    generated_at TEXT NOT NULL,
    feedback TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT ''
);
`
