package db

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS courses (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  jurisdiction TEXT NOT NULL DEFAULT '',
  total_hours INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS units (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  sequence INTEGER NOT NULL,
  title TEXT NOT NULL,
  required_hours INTEGER NOT NULL DEFAULT 0,
  UNIQUE (course_id, sequence)
);

CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  unit_id TEXT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
  sequence INTEGER NOT NULL,
  title TEXT NOT NULL,
  UNIQUE (unit_id, sequence)
);

CREATE TABLE IF NOT EXISTS question_banks (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  unit_id TEXT REFERENCES units(id) ON DELETE CASCADE,
  kind TEXT NOT NULL,                    -- unit_quiz | final_exam
  form TEXT NOT NULL DEFAULT '',         -- A | B for rotating final exams
  title TEXT NOT NULL DEFAULT '',
  questions_per_attempt INTEGER NOT NULL,
  passing_score INTEGER NOT NULL,
  time_limit_sec INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  bank_id TEXT NOT NULL REFERENCES question_banks(id) ON DELETE CASCADE,
  sequence INTEGER NOT NULL DEFAULT 0,
  qtype TEXT NOT NULL DEFAULT 'single_choice',
  prompt TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_index INTEGER NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_questions_bank ON questions(bank_id);

CREATE TABLE IF NOT EXISTS enrollments (
  id TEXT PRIMARY KEY,
  learner_id TEXT NOT NULL,
  course_id TEXT NOT NULL REFERENCES courses(id),
  enrolled_at INTEGER NOT NULL,
  expires_at INTEGER,
  current_unit INTEGER NOT NULL DEFAULT 1,
  time_spent_sec INTEGER NOT NULL DEFAULT 0,
  hours_credited INTEGER NOT NULL DEFAULT 0,
  progress_pct INTEGER NOT NULL DEFAULT 0,
  final_exam_passed INTEGER NOT NULL DEFAULT 0,
  final_exam_best_score INTEGER NOT NULL DEFAULT 0,
  final_exam_attempts INTEGER NOT NULL DEFAULT 0,
  first_exam_attempt_at INTEGER,
  last_exam_attempt_at INTEGER,
  retest_eligible_at INTEGER,
  policy_ack_at INTEGER,
  completed INTEGER NOT NULL DEFAULT 0,
  completed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_enrollments_learner ON enrollments(learner_id);

CREATE TABLE IF NOT EXISTS unit_progress (
  enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
  unit_id TEXT NOT NULL REFERENCES units(id),
  sequence INTEGER NOT NULL,
  status TEXT NOT NULL,                  -- locked | in_progress | completed
  lessons_completed INTEGER NOT NULL DEFAULT 0,
  quiz_passed INTEGER NOT NULL DEFAULT 0,
  quiz_best_score INTEGER NOT NULL DEFAULT 0,
  quiz_attempts INTEGER NOT NULL DEFAULT 0,
  time_spent_sec INTEGER NOT NULL DEFAULT 0,
  started_at INTEGER,
  completed_at INTEGER,
  PRIMARY KEY (enrollment_id, unit_id)
);

CREATE TABLE IF NOT EXISTS lesson_progress (
  enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
  lesson_id TEXT NOT NULL REFERENCES lessons(id),
  unit_id TEXT NOT NULL,
  completed INTEGER NOT NULL DEFAULT 0,
  time_spent_sec INTEGER NOT NULL DEFAULT 0,
  completed_at INTEGER,
  PRIMARY KEY (enrollment_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  id TEXT PRIMARY KEY,
  enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
  bank_id TEXT NOT NULL REFERENCES question_banks(id),
  learner_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  form TEXT NOT NULL DEFAULT '',
  attempt_number INTEGER NOT NULL,
  question_ids_json TEXT NOT NULL,
  total_questions INTEGER NOT NULL,
  answered_count INTEGER NOT NULL DEFAULT 0,
  correct_count INTEGER NOT NULL DEFAULT 0,
  score INTEGER NOT NULL DEFAULT 0,
  passed INTEGER NOT NULL DEFAULT 0,
  started_at INTEGER NOT NULL,
  completed_at INTEGER,
  time_spent_sec INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_attempts_enrollment_bank ON quiz_attempts(enrollment_id, bank_id, started_at);

CREATE TABLE IF NOT EXISTS quiz_answers (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES quiz_attempts(id),
  question_id TEXT NOT NULL,
  selected_option INTEGER NOT NULL,
  is_correct INTEGER NOT NULL,
  answered_at INTEGER NOT NULL,
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                     -- e.g. unit.passed
  key TEXT NOT NULL,                     -- natural key: enrollment id
  data TEXT NOT NULL,                    -- JSON payload
  created_at INTEGER NOT NULL,
  delivered_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_event_log_pending ON event_log(delivered_at, seq);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS courses (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  jurisdiction TEXT NOT NULL DEFAULT '',
  total_hours INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS units (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  sequence INTEGER NOT NULL,
  title TEXT NOT NULL,
  required_hours INTEGER NOT NULL DEFAULT 0,
  UNIQUE (course_id, sequence)
);

CREATE TABLE IF NOT EXISTS lessons (
  id TEXT PRIMARY KEY,
  unit_id TEXT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
  sequence INTEGER NOT NULL,
  title TEXT NOT NULL,
  UNIQUE (unit_id, sequence)
);

CREATE TABLE IF NOT EXISTS question_banks (
  id TEXT PRIMARY KEY,
  course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
  unit_id TEXT REFERENCES units(id) ON DELETE CASCADE,
  kind TEXT NOT NULL,
  form TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  questions_per_attempt INTEGER NOT NULL,
  passing_score INTEGER NOT NULL,
  time_limit_sec INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  bank_id TEXT NOT NULL REFERENCES question_banks(id) ON DELETE CASCADE,
  sequence INTEGER NOT NULL DEFAULT 0,
  qtype TEXT NOT NULL DEFAULT 'single_choice',
  prompt TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_index INTEGER NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_questions_bank ON questions(bank_id);

CREATE TABLE IF NOT EXISTS enrollments (
  id TEXT PRIMARY KEY,
  learner_id TEXT NOT NULL,
  course_id TEXT NOT NULL REFERENCES courses(id),
  enrolled_at BIGINT NOT NULL,
  expires_at BIGINT,
  current_unit INTEGER NOT NULL DEFAULT 1,
  time_spent_sec BIGINT NOT NULL DEFAULT 0,
  hours_credited INTEGER NOT NULL DEFAULT 0,
  progress_pct INTEGER NOT NULL DEFAULT 0,
  final_exam_passed BOOLEAN NOT NULL DEFAULT FALSE,
  final_exam_best_score INTEGER NOT NULL DEFAULT 0,
  final_exam_attempts INTEGER NOT NULL DEFAULT 0,
  first_exam_attempt_at BIGINT,
  last_exam_attempt_at BIGINT,
  retest_eligible_at BIGINT,
  policy_ack_at BIGINT,
  completed BOOLEAN NOT NULL DEFAULT FALSE,
  completed_at BIGINT
);
CREATE INDEX IF NOT EXISTS idx_enrollments_learner ON enrollments(learner_id);

CREATE TABLE IF NOT EXISTS unit_progress (
  enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
  unit_id TEXT NOT NULL REFERENCES units(id),
  sequence INTEGER NOT NULL,
  status TEXT NOT NULL,
  lessons_completed INTEGER NOT NULL DEFAULT 0,
  quiz_passed BOOLEAN NOT NULL DEFAULT FALSE,
  quiz_best_score INTEGER NOT NULL DEFAULT 0,
  quiz_attempts INTEGER NOT NULL DEFAULT 0,
  time_spent_sec BIGINT NOT NULL DEFAULT 0,
  started_at BIGINT,
  completed_at BIGINT,
  PRIMARY KEY (enrollment_id, unit_id)
);

CREATE TABLE IF NOT EXISTS lesson_progress (
  enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
  lesson_id TEXT NOT NULL REFERENCES lessons(id),
  unit_id TEXT NOT NULL,
  completed BOOLEAN NOT NULL DEFAULT FALSE,
  time_spent_sec BIGINT NOT NULL DEFAULT 0,
  completed_at BIGINT,
  PRIMARY KEY (enrollment_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS quiz_attempts (
  id TEXT PRIMARY KEY,
  enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
  bank_id TEXT NOT NULL REFERENCES question_banks(id),
  learner_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  form TEXT NOT NULL DEFAULT '',
  attempt_number INTEGER NOT NULL,
  question_ids_json TEXT NOT NULL,
  total_questions INTEGER NOT NULL,
  answered_count INTEGER NOT NULL DEFAULT 0,
  correct_count INTEGER NOT NULL DEFAULT 0,
  score INTEGER NOT NULL DEFAULT 0,
  passed BOOLEAN NOT NULL DEFAULT FALSE,
  started_at BIGINT NOT NULL,
  completed_at BIGINT,
  time_spent_sec BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_attempts_enrollment_bank ON quiz_attempts(enrollment_id, bank_id, started_at);

CREATE TABLE IF NOT EXISTS quiz_answers (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES quiz_attempts(id),
  question_id TEXT NOT NULL,
  selected_option INTEGER NOT NULL,
  is_correct BOOLEAN NOT NULL,
  answered_at BIGINT NOT NULL,
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  delivered_at BIGINT
);
CREATE INDEX IF NOT EXISTS idx_event_log_pending ON event_log(delivered_at, seq);
`
